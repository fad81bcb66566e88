package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pesio-ai/be-doc-approvals/internal/client"
	"github.com/pesio-ai/be-doc-approvals/internal/config"
	"github.com/pesio-ai/be-doc-approvals/internal/database"
	"github.com/pesio-ai/be-doc-approvals/internal/handler"
	"github.com/pesio-ai/be-doc-approvals/internal/logger"
	"github.com/pesio-ai/be-doc-approvals/internal/middleware"
	"github.com/pesio-ai/be-doc-approvals/internal/repository"
	"github.com/pesio-ai/be-doc-approvals/internal/service"
	"github.com/pesio-ai/be-doc-approvals/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Document Approvals Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	approvalRepo := repository.NewApprovalRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Initialize notification publisher (optional)
	var sink service.NotificationSink
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()

		sink, err = client.NewNotificationPublisher(nc, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create notification publisher")
		}
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS notification publisher initialized")
	} else {
		log.Warn().Msg("NATS disabled; notification intents will be dropped")
	}

	// Initialize the workflow engine
	svc, err := service.NewApprovalWorkflowService(
		cfg.Workflow.TenantID,
		cfg.Workflow.Template,
		approvalRepo,
		ruleRepo,
		auditRepo,
		sink,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create workflow service")
	}

	// Load persisted rules for this tenant. Template seeds are already in
	// the rule set; persisted rules come on top.
	rules, err := ruleRepo.List(ctx, cfg.Workflow.TenantID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load approval rules")
	}
	for _, rule := range rules {
		if err := svc.ActivateRule(rule); err != nil {
			log.Warn().Err(err).Str("rule", rule.Name).Msg("Skipping invalid persisted rule")
		}
	}
	log.Info().
		Int("rules", len(svc.ListRules())).
		Str("template", cfg.Workflow.Template).
		Str("tenant_id", cfg.Workflow.TenantID).
		Msg("Workflow engine initialized")

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(svc, auditRepo, log)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())
	httpHandler.Register(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start escalation sweep worker
	if cfg.Workflow.SweepEnabled {
		sweeper := worker.NewEscalationWorker(svc, cfg.Workflow.SweepInterval, cfg.Workflow.EscalationDays, log)
		go sweeper.Run(ctx)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

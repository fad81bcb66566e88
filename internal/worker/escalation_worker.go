package worker

import (
	"context"
	"time"

	"github.com/pesio-ai/be-doc-approvals/internal/logger"
	"github.com/pesio-ai/be-doc-approvals/internal/service"
)

// EscalationWorker periodically sweeps pending approvals past the
// escalation age. It stands in for an external cron in deployments that do
// not have one; the sweep itself is idempotent, so overlap with an external
// scheduler is harmless.
type EscalationWorker struct {
	svc      *service.ApprovalWorkflowService
	interval time.Duration
	days     int
	log      *logger.Logger
}

// NewEscalationWorker creates the sweep worker.
func NewEscalationWorker(svc *service.ApprovalWorkflowService, interval time.Duration, days int, log *logger.Logger) *EscalationWorker {
	return &EscalationWorker{svc: svc, interval: interval, days: days, log: log}
}

// Name identifies the worker in logs.
func (w *EscalationWorker) Name() string { return "escalation-sweep" }

// Run blocks, sweeping on each tick until the context is cancelled.
func (w *EscalationWorker) Run(ctx context.Context) {
	w.log.Info().
		Dur("interval", w.interval).
		Int("days_threshold", w.days).
		Msg("Escalation sweep worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Escalation sweep worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EscalationWorker) sweep(ctx context.Context) {
	ids, err := w.svc.EscalateOverdue(ctx, w.days)
	if err != nil {
		w.log.Error().Err(err).Msg("Escalation sweep failed")
		return
	}
	if len(ids) > 0 {
		w.log.Info().Int("escalated", len(ids)).Msg("Escalation sweep completed")
	}
}

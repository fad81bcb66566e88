package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-doc-approvals/internal/service"
)

// NotificationPublisher publishes approval workflow events to NATS
// JetStream for consumption by the platform notification service.
//
// Subject convention: notifications.docs.<event_kind>
// Event kinds: request_created, approved, rejected, escalated
//
// The engine treats publishes as fire-and-forget; this publisher returns
// the error so the engine can log and count it, but never retries.
type NotificationPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// NewNotificationPublisher creates a publisher on an established NATS
// connection.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) (*NotificationPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &NotificationPublisher{js: js, log: log}, nil
}

// Notify publishes one notification intent.
// Subject: notifications.docs.<kind>
func (p *NotificationPublisher) Notify(ctx context.Context, event service.NotificationEvent) error {
	if event.RecipientID == "" {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	subject := fmt.Sprintf("notifications.docs.%s", event.Kind)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.log.Debug().
		Str("subject", subject).
		Str("approval_id", event.ApprovalID).
		Str("recipient_id", event.RecipientID).
		Msg("notification: event published")
	return nil
}

var _ service.NotificationSink = (*NotificationPublisher)(nil)

package queue

import (
	"context"

	"training-backend/internal/shared/telemetry"
)

// NopPublisher drops every event. Used when queue URLs are not
// configured, typically in local development.
type NopPublisher struct{}

// Publish logs and discards the envelope.
func (NopPublisher) Publish(ctx context.Context, queueName string, envelope any) error {
	_ = ctx
	_ = envelope
	telemetry.Info("queue.publish_skipped", map[string]any{
		"queue":  queueName,
		"reason": "publisher not configured",
	})
	return nil
}

var _ Publisher = NopPublisher{}

package events

import (
	"context"
	"log/slog"

	outboxDomain "github.com/allisson/secretvault/internal/outbox/domain"
)

// LogSink writes events to the logger. Event payloads never carry key material or plaintext.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs event at info level.
func (s *LogSink) Deliver(_ context.Context, event *Event) error {
	s.logger.Info("vault event",
		slog.String("event_id", event.ID.String()),
		slog.String("event", event.Name),
		slog.Time("occurred_at", event.OccurredAt),
		slog.String("payload", string(event.Payload)),
	)
	return nil
}

// OutboxWriter stores outbox events.
type OutboxWriter interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// OutboxSink writes events to the outbox table, where the outbox worker picks them up.
type OutboxSink struct {
	outbox OutboxWriter
}

// NewOutboxSink creates an OutboxSink.
func NewOutboxSink(outbox OutboxWriter) *OutboxSink {
	return &OutboxSink{outbox: outbox}
}

// Deliver inserts event as a pending outbox event.
func (s *OutboxSink) Deliver(ctx context.Context, event *Event) error {
	return s.outbox.Create(ctx, &outboxDomain.OutboxEvent{
		ID:            event.ID,
		EventType:     event.Name,
		Payload:       string(event.Payload),
		Status:        outboxDomain.OutboxEventStatusPending,
		NextAttemptAt: event.OccurredAt,
		CreatedAt:     event.OccurredAt,
		UpdatedAt:     event.OccurredAt,
	})
}

// Package usecase implements the outbox worker that forwards stored vault events to their
// processor, schedules redelivery of failed events and prunes delivered ones.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/secretvault/internal/database"
	"github.com/allisson/secretvault/internal/outbox/domain"
)

// Config tunes the worker. A zero Retention keeps processed events forever.
type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// OutboxEventRepository persists outbox events.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	// GetPendingEvents locks up to limit pending events whose next attempt is due at now.
	GetPendingEvents(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// EventProcessor delivers one event.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase is the outbox worker.
type UseCase interface {
	// Start processes batches every Interval until ctx is done and returns ctx.Err().
	Start(ctx context.Context) error
	// ProcessEvents delivers one batch of due events.
	ProcessEvents(ctx context.Context) (*BatchResult, error)
}

// BatchResult counts the outcome of one ProcessEvents call.
type BatchResult struct {
	Processed int
	Retrying  int
	Failed    int
}

// OutboxUseCase is the UseCase backed by a repository and a processor.
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
	now            func() time.Time
}

// NewOutboxUseCase creates an OutboxUseCase.
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *OutboxUseCase {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox worker",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
		slog.Int("max_retries", uc.config.MaxRetries),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.ProcessEvents(ctx); err != nil {
				uc.logger.Error("failed to process outbox events", slog.Any("error", err))
			}
			if err := uc.pruneProcessed(ctx); err != nil {
				uc.logger.Error("failed to prune outbox events", slog.Any("error", err))
			}
		}
	}
}

// ProcessEvents runs in one transaction so that the row locks taken by GetPendingEvents hold
// until every event of the batch is updated.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) (*BatchResult, error) {
	var result BatchResult

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		result = BatchResult{}
		now := uc.now()

		events, err := uc.outboxRepo.GetPendingEvents(ctx, now, uc.config.BatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := uc.eventProcessor.Process(ctx, event); err != nil {
				event.MarkFailed(err, now, uc.config.MaxRetries)

				logAttrs := []any{
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("retries", event.Retries),
					slog.Any("error", err),
				}
				if event.Status == domain.OutboxEventStatusFailed {
					result.Failed++
					uc.logger.Error("outbox event delivery abandoned", logAttrs...)
				} else {
					result.Retrying++
					uc.logger.Warn("outbox event delivery failed",
						append(logAttrs, slog.Time("next_attempt_at", event.NextAttemptAt))...)
				}
			} else {
				event.MarkProcessed(now)
				result.Processed++
			}

			if err := uc.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Processed+result.Retrying+result.Failed > 0 {
		uc.logger.Info("outbox batch done",
			slog.Int("processed", result.Processed),
			slog.Int("retrying", result.Retrying),
			slog.Int("failed", result.Failed),
		)
	}
	return &result, nil
}

func (uc *OutboxUseCase) pruneProcessed(ctx context.Context) error {
	if uc.config.Retention <= 0 {
		return nil
	}
	count, err := uc.outboxRepo.DeleteProcessedBefore(ctx, uc.now().Add(-uc.config.Retention))
	if err != nil {
		return fmt.Errorf("failed to delete processed outbox events: %w", err)
	}
	if count > 0 {
		uc.logger.Info("pruned processed outbox events", slog.Int64("count", count))
	}
	return nil
}

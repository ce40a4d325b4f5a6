package usecase

import (
	"context"
	"log/slog"

	apperrors "github.com/allisson/secretvault/internal/errors"
)

// eventEmitter hands events to the publisher after an operation has committed. Publish errors
// are logged and never reach the caller.
type eventEmitter struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func (e *eventEmitter) emit(ctx context.Context, name string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, name, payload); err != nil {
		e.logger.Warn("failed to publish event",
			slog.String("event", name),
			slog.Any("error", apperrors.Wrap(apperrors.ErrEventPublish, err.Error())),
		)
	}
}

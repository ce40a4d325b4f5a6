// Package events delivers vault events asynchronously through a bounded in-memory buffer.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/secretvault/internal/errors"
)

const (
	// DefaultBufferSize is used when NewDispatcher is given a non-positive size.
	DefaultBufferSize = 1024

	drainTimeout = 5 * time.Second
)

// Event is a published event waiting for delivery.
type Event struct {
	ID         uuid.UUID
	Name       string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// Sink receives events drained from the dispatcher buffer.
type Sink interface {
	Deliver(ctx context.Context, event *Event) error
}

// Dispatcher is a bounded channel drained by a single goroutine started with Run.
//
// Publish never blocks: when the buffer is full the event is dropped and an ErrEventPublish
// error is returned for the caller to log.
type Dispatcher struct {
	events  chan *Event
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time
	stopped atomic.Bool
	dropped atomic.Int64
}

// NewDispatcher creates a Dispatcher that buffers up to bufferSize events.
func NewDispatcher(bufferSize int, sink Sink, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		events: make(chan *Event, bufferSize),
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Publish encodes payload and enqueues it without blocking.
func (d *Dispatcher) Publish(ctx context.Context, name string, payload any) error {
	if d.stopped.Load() {
		return fmt.Errorf("%w: dispatcher stopped, dropped %s", apperrors.ErrEventPublish, name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", apperrors.ErrEventPublish, name, err)
	}

	event := &Event{
		ID:         uuid.Must(uuid.NewV7()),
		Name:       name,
		Payload:    raw,
		OccurredAt: d.now().UTC(),
	}

	select {
	case d.events <- event:
		return nil
	default:
		d.dropped.Add(1)
		return fmt.Errorf("%w: buffer full, dropped %s", apperrors.ErrEventPublish, name)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Pending returns the number of buffered events not yet delivered.
func (d *Dispatcher) Pending() int {
	return len(d.events)
}

// Run delivers buffered events until ctx is done, then drains what is left and returns.
// Publish fails once Run has returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.logger != nil {
		d.logger.Info("starting event dispatcher", slog.Int("buffer_size", cap(d.events)))
	}

	for {
		select {
		case <-ctx.Done():
			d.stopped.Store(true)
			d.drain(ctx)
			if d.logger != nil {
				d.logger.Info("stopping event dispatcher", slog.Int64("dropped", d.Dropped()))
			}
			return nil
		case event := <-d.events:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.events:
			d.deliver(drainCtx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event *Event) {
	if err := d.sink.Deliver(ctx, event); err != nil && d.logger != nil {
		d.logger.Error("failed to deliver event",
			slog.String("event_id", event.ID.String()),
			slog.String("event", event.Name),
			slog.Any("error", err),
		)
	}
}

// Package domain defines the outbox record that carries vault events from the dispatcher to
// the delivery worker.
package domain

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// OutboxEventStatus is the delivery state of an outbox event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// Redelivery delay bounds. The delay doubles with every failed attempt.
const (
	MinRetryDelay = 5 * time.Second
	MaxRetryDelay = 10 * time.Minute
)

// OutboxEvent is a vault event waiting for, or done with, delivery. Payload holds the JSON
// encoded event body.
type OutboxEvent struct {
	ID            uuid.UUID
	EventType     string
	Payload       string
	Status        OutboxEventStatus
	Retries       int
	LastError     *string
	NextAttemptAt time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MarkProcessed records a successful delivery.
func (e *OutboxEvent) MarkProcessed(now time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.LastError = nil
}

// MarkFailed records a failed delivery attempt. The event stays pending with a later
// NextAttemptAt until maxRetries attempts have failed, then becomes failed.
func (e *OutboxEvent) MarkFailed(cause error, now time.Time, maxRetries int) {
	e.Retries++
	msg := cause.Error()
	e.LastError = &msg

	if e.Retries >= maxRetries {
		e.Status = OutboxEventStatusFailed
		return
	}
	e.NextAttemptAt = now.Add(RetryDelay(e.Retries))
}

// RetryDelay returns the wait before attempt number retries+1: MinRetryDelay doubled per
// earlier failure, capped at MaxRetryDelay and without jitter.
func RetryDelay(retries int) time.Duration {
	if retries <= 0 {
		return 0
	}
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(MinRetryDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(MaxRetryDelay),
		backoff.WithMaxElapsedTime(0),
	)
	var delay time.Duration
	for range retries {
		delay = bo.NextBackOff()
	}
	return delay
}

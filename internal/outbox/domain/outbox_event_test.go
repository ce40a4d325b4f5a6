package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retries  int
		expected time.Duration
	}{
		{retries: -1, expected: 0},
		{retries: 0, expected: 0},
		{retries: 1, expected: 5 * time.Second},
		{retries: 2, expected: 10 * time.Second},
		{retries: 3, expected: 20 * time.Second},
		{retries: 7, expected: 320 * time.Second},
		{retries: 8, expected: MaxRetryDelay},
		{retries: 50, expected: MaxRetryDelay},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RetryDelay(tt.retries), "retries=%d", tt.retries)
	}
}

func TestRetryDelay_NoJitter(t *testing.T) {
	for retries := 1; retries <= 10; retries++ {
		first := RetryDelay(retries)
		for range 5 {
			assert.Equal(t, first, RetryDelay(retries), "retries=%d", retries)
		}
		assert.GreaterOrEqual(t, first, RetryDelay(retries-1))
	}
}

func TestOutboxEvent_MarkFailed(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("SchedulesRetry", func(t *testing.T) {
		event := &OutboxEvent{Status: OutboxEventStatusPending, NextAttemptAt: now}

		event.MarkFailed(errors.New("webhook returned 502"), now, 3)

		assert.Equal(t, OutboxEventStatusPending, event.Status)
		assert.Equal(t, 1, event.Retries)
		require.NotNil(t, event.LastError)
		assert.Equal(t, "webhook returned 502", *event.LastError)
		assert.Equal(t, now.Add(MinRetryDelay), event.NextAttemptAt)
	})

	t.Run("GivesUpAtMaxRetries", func(t *testing.T) {
		event := &OutboxEvent{Status: OutboxEventStatusPending, Retries: 2, NextAttemptAt: now}

		event.MarkFailed(errors.New("timeout"), now, 3)

		assert.Equal(t, OutboxEventStatusFailed, event.Status)
		assert.Equal(t, 3, event.Retries)
		assert.Equal(t, now, event.NextAttemptAt)
	})
}

func TestOutboxEvent_MarkProcessed(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lastError := "previous failure"
	event := &OutboxEvent{Status: OutboxEventStatusPending, Retries: 1, LastError: &lastError}

	event.MarkProcessed(now)

	assert.Equal(t, OutboxEventStatusProcessed, event.Status)
	require.NotNil(t, event.ProcessedAt)
	assert.Equal(t, now, *event.ProcessedAt)
	assert.Nil(t, event.LastError)
}

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/allisson/secretvault/internal/errors"
	outboxDomain "github.com/allisson/secretvault/internal/outbox/domain"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu        sync.Mutex
	events    []*Event
	delivered chan struct{}
	err       error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{delivered: make(chan struct{}, 64)}
}

func (s *recordingSink) Deliver(_ context.Context, event *Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.delivered <- struct{}{}
	return s.err
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}

func waitDelivered(t *testing.T, s *recordingSink, n int) {
	t.Helper()
	for range n {
		select {
		case <-s.delivered:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d deliveries", n)
		}
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(8, sink, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	secretID := uuid.New()
	require.NoError(t, d.Publish(ctx, vaultDomain.EventSecretCreated, vaultDomain.SecretEvent{SecretID: secretID}))
	require.NoError(t, d.Publish(ctx, vaultDomain.EventSecretAccessed, vaultDomain.SecretEvent{SecretID: secretID}))
	waitDelivered(t, sink, 2)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{vaultDomain.EventSecretCreated, vaultDomain.EventSecretAccessed}, sink.names())

	var payload vaultDomain.SecretEvent
	require.NoError(t, json.Unmarshal(sink.events[0].Payload, &payload))
	assert.Equal(t, secretID, payload.SecretID)
	assert.NotEqual(t, uuid.Nil, sink.events[0].ID)
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(1, sink, nil)

	require.NoError(t, d.Publish(context.Background(), "a", map[string]string{}))

	start := time.Now()
	err := d.Publish(context.Background(), "b", map[string]string{})
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, apperrors.ErrEventPublish)
	assert.Equal(t, int64(1), d.Dropped())
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(4, sink, nil)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, d.Publish(context.Background(), name, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, []string{"a", "b", "c"}, sink.names())
	assert.Equal(t, 0, d.Pending())

	err := d.Publish(context.Background(), "late", nil)
	assert.ErrorIs(t, err, apperrors.ErrEventPublish)
}

func TestDispatcher_SinkErrorIsLogged(t *testing.T) {
	sink := newRecordingSink()
	sink.err = errors.New("sink down")

	var buf bytes.Buffer
	d := NewDispatcher(2, sink, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, d.Publish(context.Background(), "a", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Contains(t, buf.String(), "failed to deliver event")
	assert.Contains(t, buf.String(), "sink down")
}

func TestDispatcher_UnencodablePayload(t *testing.T) {
	d := NewDispatcher(1, newRecordingSink(), nil)
	err := d.Publish(context.Background(), "a", make(chan int))
	assert.ErrorIs(t, err, apperrors.ErrEventPublish)
	assert.Equal(t, 0, d.Pending())
}

type mockOutboxWriter struct {
	mock.Mock
}

func (m *mockOutboxWriter) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestOutboxSink_Deliver(t *testing.T) {
	writer := &mockOutboxWriter{}
	sink := NewOutboxSink(writer)

	event := &Event{
		ID:         uuid.New(),
		Name:       vaultDomain.EventSecretDeleted,
		Payload:    json.RawMessage(`{"permanent":true}`),
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	writer.On("Create", mock.Anything, mock.MatchedBy(func(e *outboxDomain.OutboxEvent) bool {
		return e.ID == event.ID &&
			e.EventType == vaultDomain.EventSecretDeleted &&
			e.Payload == `{"permanent":true}` &&
			e.Status == outboxDomain.OutboxEventStatusPending &&
			e.CreatedAt.Equal(event.OccurredAt) &&
			e.NextAttemptAt.Equal(event.OccurredAt)
	})).Return(nil).Once()

	require.NoError(t, sink.Deliver(context.Background(), event))
	writer.AssertExpectations(t)
}

func TestLogSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Deliver(context.Background(), &Event{
		ID:      uuid.New(),
		Name:    vaultDomain.EventShareRevoked,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), vaultDomain.EventShareRevoked)
}

package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/allisson/secretvault/internal/outbox/domain"
	vaultDomain "github.com/allisson/secretvault/internal/vault/domain"
)

// LogEventProcessor decodes vault events and writes them to the logger.
type LogEventProcessor struct {
	logger *slog.Logger
}

// NewLogEventProcessor creates a new LogEventProcessor
func NewLogEventProcessor(logger *slog.Logger) *LogEventProcessor {
	return &LogEventProcessor{
		logger: logger,
	}
}

// Process decodes the payload for the event type and logs it. Unknown types are logged as a
// warning and acknowledged.
func (p *LogEventProcessor) Process(_ context.Context, event *domain.OutboxEvent) error {
	payload, known, err := decodeVaultEvent(event)
	if err != nil {
		return err
	}

	if p.logger == nil {
		return nil
	}
	if !known {
		p.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		return nil
	}
	p.logger.Info("vault event delivered",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.Any("payload", payload),
	)
	return nil
}

func decodeVaultEvent(event *domain.OutboxEvent) (any, bool, error) {
	var target any
	switch event.EventType {
	case vaultDomain.EventSecretCreated,
		vaultDomain.EventSecretAccessed,
		vaultDomain.EventSecretUpdated,
		vaultDomain.EventSecretRotated,
		vaultDomain.EventSecretDeleted:
		target = &vaultDomain.SecretEvent{}
	case vaultDomain.EventSecretShared, vaultDomain.EventShareRevoked:
		target = &vaultDomain.ShareEvent{}
	default:
		var raw map[string]any
		if err := json.Unmarshal([]byte(event.Payload), &raw); err != nil {
			return nil, false, fmt.Errorf("invalid %s payload: %w", event.EventType, err)
		}
		return raw, false, nil
	}

	if err := json.Unmarshal([]byte(event.Payload), target); err != nil {
		return nil, true, fmt.Errorf("invalid %s payload: %w", event.EventType, err)
	}
	return target, true, nil
}

// WebhookConfig configures WebhookEventProcessor.
type WebhookConfig struct {
	URL          string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// WebhookEventProcessor posts each outbox event as JSON to a fixed URL. Transient failures are
// retried inside a single Process call; a non-2xx answer fails the attempt so the outbox worker
// counts a retry.
type WebhookEventProcessor struct {
	url    string
	client *retryablehttp.Client
	logger *slog.Logger
}

type webhookBody struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// NewWebhookEventProcessor creates a WebhookEventProcessor.
func NewWebhookEventProcessor(cfg WebhookConfig, logger *slog.Logger) *WebhookEventProcessor {
	httpClient := cleanhttp.DefaultPooledClient()
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	client := &retryablehttp.Client{
		HTTPClient:   httpClient,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		RetryMax:     cfg.RetryMax,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	return &WebhookEventProcessor{url: cfg.URL, client: client, logger: logger}
}

// Process delivers event to the webhook.
func (p *WebhookEventProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	if _, _, err := decodeVaultEvent(event); err != nil {
		return err
	}

	body, err := json.Marshal(webhookBody{
		ID:        event.ID.String(),
		Type:      event.EventType,
		CreatedAt: event.CreatedAt,
		Data:      json.RawMessage(event.Payload),
	})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", event.ID.String())
	req.Header.Set("X-Event-Type", event.EventType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	if p.logger != nil {
		p.logger.Debug("event delivered to webhook",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
		)
	}
	return nil
}

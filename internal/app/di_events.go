package app

import (
	"fmt"
	"time"

	"github.com/allisson/secretvault/internal/config"
	"github.com/allisson/secretvault/internal/events"
	outboxRepository "github.com/allisson/secretvault/internal/outbox/repository"
	outboxUsecase "github.com/allisson/secretvault/internal/outbox/usecase"
)

const (
	webhookRetryMax     = 3
	webhookRetryWaitMin = 200 * time.Millisecond
	webhookRetryWaitMax = 2 * time.Second
)

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// EventDispatcher returns the event dispatcher, or nil when EVENT_SINK is "none".
// Its Run method must be started for events to leave the buffer.
func (c *Container) EventDispatcher() (*events.Dispatcher, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initEventDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// OutboxUseCase returns the outbox use case instance, or nil unless EVENT_SINK is "outbox".
func (c *Container) OutboxUseCase() (outboxUsecase.UseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

func (c *Container) initOutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initEventDispatcher() (*events.Dispatcher, error) {
	var sink events.Sink
	switch c.config.EventSink {
	case config.EventSinkNone:
		return nil, nil
	case config.EventSinkLog:
		sink = events.NewLogSink(c.Logger())
	case config.EventSinkOutbox, "":
		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox repository for event dispatcher: %w", err)
		}
		sink = events.NewOutboxSink(outboxRepo)
	default:
		return nil, fmt.Errorf("unsupported event sink: %s", c.config.EventSink)
	}
	return events.NewDispatcher(c.config.EventBufferSize, sink, c.Logger()), nil
}

func (c *Container) initOutboxUseCase() (outboxUsecase.UseCase, error) {
	if c.config.EventSink != config.EventSinkOutbox && c.config.EventSink != "" {
		return nil, nil
	}

	logger := c.Logger()
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	var processor outboxUsecase.EventProcessor = outboxUsecase.NewLogEventProcessor(logger)
	if c.config.OutboxWebhookURL != "" {
		processor = outboxUsecase.NewWebhookEventProcessor(outboxUsecase.WebhookConfig{
			URL:          c.config.OutboxWebhookURL,
			Timeout:      c.config.OutboxWebhookTimeout,
			RetryMax:     webhookRetryMax,
			RetryWaitMin: webhookRetryWaitMin,
			RetryWaitMax: webhookRetryWaitMax,
		}, logger)
	}

	useCaseConfig := outboxUsecase.Config{
		Interval:   c.config.OutboxInterval,
		BatchSize:  c.config.OutboxBatchSize,
		MaxRetries: c.config.OutboxMaxRetries,
		Retention:  c.config.OutboxRetention,
	}
	return outboxUsecase.NewOutboxUseCase(useCaseConfig, txManager, outboxRepo, processor, logger), nil
}

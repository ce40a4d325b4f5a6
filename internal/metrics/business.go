package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Operation outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusError   = "error"
)

// BusinessMetrics records vault operation outcomes.
type BusinessMetrics interface {
	// RecordOperation counts one operation. status is one of StatusSuccess, StatusDenied or
	// StatusError.
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes the latency of one operation in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordRotations adds the outcome of a batch rotation run. trigger is "schedule" or
	// "master_key".
	RecordRotations(ctx context.Context, trigger string, rotated, failed int)

	// RecordIntegrityFailure counts a ciphertext that failed authentication.
	RecordIntegrityFailure(ctx context.Context, operation string)
}

type businessMetrics struct {
	operations        metric.Int64Counter
	durations         metric.Float64Histogram
	rotations         metric.Int64Counter
	integrityFailures metric.Int64Counter
}

// NewBusinessMetrics registers the vault instruments on meterProvider, prefixing every name
// with namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operations, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of vault operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durations, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of vault operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	rotations, err := meter.Int64Counter(
		fmt.Sprintf("%s_secret_rotations_total", namespace),
		metric.WithDescription("Secrets processed by batch rotation runs"),
		metric.WithUnit("{secret}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rotation counter: %w", err)
	}

	integrityFailures, err := meter.Int64Counter(
		fmt.Sprintf("%s_integrity_failures_total", namespace),
		metric.WithDescription("Ciphertexts that failed authentication"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create integrity failure counter: %w", err)
	}

	return &businessMetrics{
		operations:        operations,
		durations:         durations,
		rotations:         rotations,
		integrityFailures: integrityFailures,
	}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordRotations(ctx context.Context, trigger string, rotated, failed int) {
	if rotated > 0 {
		b.rotations.Add(ctx, int64(rotated), metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("status", StatusSuccess),
		))
	}
	if failed > 0 {
		b.rotations.Add(ctx, int64(failed), metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("status", StatusError),
		))
	}
}

func (b *businessMetrics) RecordIntegrityFailure(ctx context.Context, operation string) {
	b.integrityFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// NoOpBusinessMetrics discards everything. Used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics returns a BusinessMetrics that records nothing.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (n *NoOpBusinessMetrics) RecordRotations(context.Context, string, int, int) {}

func (n *NoOpBusinessMetrics) RecordIntegrityFailure(context.Context, string) {}

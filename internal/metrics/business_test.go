package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a metric matching name, a
// partial label pattern and a value. The regex tolerates the otel scope labels added by the
// exporter.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("vault_test")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "vault_test")

	require.NoError(t, err)
	assert.NotNil(t, bm)
}

func TestBusinessMetrics_Operations(t *testing.T) {
	provider, err := NewProvider("ops")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "ops")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "vault", "secret_get", StatusSuccess)
	bm.RecordOperation(ctx, "vault", "secret_get", StatusSuccess)
	bm.RecordOperation(ctx, "vault", "secret_get", StatusDenied)
	bm.RecordOperation(ctx, "vault", "secret_create", StatusError)
	bm.RecordDuration(ctx, "vault", "secret_get", 5*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, "vault", "secret_get", 7*time.Millisecond, StatusSuccess)

	output := scrape(t, provider)

	assertBizMetricLine(t, output, `ops_operations_total`,
		`domain="vault".*operation="secret_get".*status="success"`, `2`)
	assertBizMetricLine(t, output, `ops_operations_total`,
		`domain="vault".*operation="secret_get".*status="denied"`, `1`)
	assertBizMetricLine(t, output, `ops_operations_total`,
		`domain="vault".*operation="secret_create".*status="error"`, `1`)
	assertBizMetricLine(t, output, `ops_operation_duration_seconds_count`,
		`domain="vault".*operation="secret_get".*status="success"`, `2`)
}

func TestBusinessMetrics_RecordRotations(t *testing.T) {
	provider, err := NewProvider("rot")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "rot")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordRotations(ctx, "schedule", 4, 1)
	bm.RecordRotations(ctx, "master_key", 2, 0)
	bm.RecordRotations(ctx, "schedule", 0, 0)

	output := scrape(t, provider)

	assertBizMetricLine(t, output, `rot_secret_rotations_total`, `status="success".*trigger="schedule"`, `4`)
	assertBizMetricLine(t, output, `rot_secret_rotations_total`, `status="error".*trigger="schedule"`, `1`)
	assertBizMetricLine(t, output, `rot_secret_rotations_total`, `status="success".*trigger="master_key"`, `2`)
	assert.NotRegexp(t, `rot_secret_rotations_total\{[^}]*status="error"[^}]*trigger="master_key"`, output)
}

func TestBusinessMetrics_RecordIntegrityFailure(t *testing.T) {
	provider, err := NewProvider("integ")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integ")
	require.NoError(t, err)

	bm.RecordIntegrityFailure(context.Background(), "secret_get")
	bm.RecordIntegrityFailure(context.Background(), "secret_get")

	assertBizMetricLine(t, scrape(t, provider), `integ_integrity_failures_total`, `operation="secret_get"`, `2`)
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	noOp := NewNoOpBusinessMetrics()
	assert.IsType(t, &NoOpBusinessMetrics{}, noOp)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		noOp.RecordOperation(ctx, "vault", "secret_get", StatusSuccess)
		noOp.RecordDuration(ctx, "vault", "secret_get", time.Millisecond, StatusSuccess)
		noOp.RecordRotations(ctx, "schedule", 1, 1)
		noOp.RecordIntegrityFailure(ctx, "secret_get")
	})
}

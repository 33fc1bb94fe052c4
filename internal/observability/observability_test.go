package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsCollectorExportsRelayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsCollector(reg)
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	m.RecordHop(ctx, "redirect")
	m.RecordRelay(ctx, "streamed", 120*time.Millisecond, 4096)

	body := scrape(t, reg)
	assert.Contains(t, body, `mlwio_relay_requests_total{`)
	assert.Contains(t, body, `outcome="streamed"`)
	assert.Contains(t, body, `mlwio_relay_hops_total{`)
	assert.Contains(t, body, `kind="redirect"`)
	assert.Contains(t, body, `mlwio_relay_streamed_bytes_total`)
	assert.Contains(t, body, `mlwio_relay_duration_seconds_bucket{`)
}

func TestNilMetricsCollectorIsSafe(t *testing.T) {
	var m *MetricsCollector
	m.RecordHop(context.Background(), "redirect")
	m.RecordRelay(context.Background(), "failed", time.Second, 0)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestHTTPMetricsCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	done := m.Start()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inflight))
	done(http.MethodGet, "/api/content", http.StatusOK)
	done2 := m.Start()
	done2(http.MethodGet, "", http.StatusNotFound)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/content", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := NewRegistry()
	NewHTTPMetrics(reg).Start()(http.MethodGet, "/api/health", http.StatusOK)

	body := scrape(t, reg)
	assert.Contains(t, body, "mlwio_http_requests_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{})
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))

	_, err = NewTracerProvider(TracingConfig{Enabled: true, Exporter: "jaeger"})
	require.Error(t, err)

	var nilProvider *TracerProvider
	assert.NotNil(t, nilProvider.Tracer())
}

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewRegistry returns a Prometheus registry preloaded with runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// MetricsCollector records download relay metrics through an OpenTelemetry
// meter whose readings are exported into a Prometheus registry.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider

	relayRequests metric.Int64Counter
	relayHops     metric.Int64Counter
	relayBytes    metric.Int64Counter
	relayDuration metric.Float64Histogram
}

// NewMetricsCollector wires an OTel meter provider into reg.
func NewMetricsCollector(reg prometheus.Registerer) (*MetricsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("mlwio")

	m := &MetricsCollector{provider: provider}
	if m.relayRequests, err = meter.Int64Counter(
		"mlwio.relay.requests",
		metric.WithDescription("Download relay requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create relay requests counter: %w", err)
	}
	if m.relayHops, err = meter.Int64Counter(
		"mlwio.relay.hops",
		metric.WithDescription("Upstream re-fetches by cause (redirect or interstitial)"),
		metric.WithUnit("{hop}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create relay hops counter: %w", err)
	}
	if m.relayBytes, err = meter.Int64Counter(
		"mlwio.relay.streamed",
		metric.WithDescription("Bytes streamed from upstream to clients"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create relay bytes counter: %w", err)
	}
	if m.relayDuration, err = meter.Float64Histogram(
		"mlwio.relay.duration",
		metric.WithDescription("Wall time of a relay run"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create relay duration histogram: %w", err)
	}
	return m, nil
}

// Shutdown flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordRelay records a finished relay run.
func (m *MetricsCollector) RecordRelay(ctx context.Context, outcome string, duration time.Duration, bytes int64) {
	if m == nil || m.relayRequests == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.relayRequests.Add(ctx, 1, attrs)
	m.relayDuration.Record(ctx, duration.Seconds(), attrs)
	if bytes > 0 {
		m.relayBytes.Add(ctx, bytes)
	}
}

// RecordHop counts one upstream re-fetch.
func (m *MetricsCollector) RecordHop(ctx context.Context, kind string) {
	if m == nil || m.relayHops == nil {
		return
	}
	m.relayHops.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

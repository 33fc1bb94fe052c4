package observability

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return recorder, provider
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestRelaySpanRecordsTargetAndOutcome(t *testing.T) {
	recorder, provider := newRecordingTracer(t)

	_, span := StartRelaySpan(context.Background(), provider.Tracer("test"))
	span.Target("https://files.example.com/get?token=secret", "Movie (2020) 1080p.mkv")
	span.End("streamed", 2048)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanRelayDownload, ended[0].Name())
	attrs := attrMap(ended[0])
	assert.Equal(t, "files.example.com", attrs[AttrSourceHost].AsString())
	assert.Equal(t, "Movie (2020) 1080p.mkv", attrs[AttrFilename].AsString())
	assert.Equal(t, "streamed", attrs[AttrOutcome].AsString())
	assert.Equal(t, int64(2048), attrs[AttrBytes].AsInt64())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestRelaySpanFailSetsErrorStatus(t *testing.T) {
	recorder, provider := newRecordingTracer(t)

	_, span := StartRelaySpan(context.Background(), provider.Tracer("test"))
	span.Fail(errors.New("dial refused"), "upstream_unreachable")
	span.End("failed", 0)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "upstream_unreachable", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestRelaySpanRecordErrorKeepsStatusUnset(t *testing.T) {
	recorder, provider := newRecordingTracer(t)

	_, span := StartRelaySpan(context.Background(), provider.Tracer("test"))
	span.RecordError(nil)
	span.RecordError(errors.New("interstitial unresolvable"))
	span.End("fallback", 0)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
}

func TestHopSpanIsChildOfRelaySpan(t *testing.T) {
	recorder, provider := newRecordingTracer(t)
	tracer := provider.Tracer("test")

	ctx, relay := StartRelaySpan(context.Background(), tracer)
	_, hop := StartHopSpan(ctx, tracer, 1, "redirect")
	hop.End(http.StatusOK, nil)
	relay.End("streamed", 10)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	hopSpan := ended[0]
	assert.Equal(t, SpanRelayHop, hopSpan.Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), hopSpan.Parent().SpanID())

	attrs := attrMap(hopSpan)
	assert.Equal(t, int64(1), attrs[AttrHop].AsInt64())
	assert.Equal(t, "redirect", attrs[AttrHopKind].AsString())
	assert.Equal(t, int64(http.StatusOK), attrs[AttrStatusCode].AsInt64())
	_, flagged := attrs[AttrError]
	assert.False(t, flagged)
}

func TestHopSpanEndWithError(t *testing.T) {
	recorder, provider := newRecordingTracer(t)

	_, hop := StartHopSpan(context.Background(), provider.Tracer("test"), 0, "initial")
	hop.End(0, errors.New("connection reset"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	attrs := attrMap(ended[0])
	assert.True(t, attrs[AttrError].AsBool())
	_, hasStatus := attrs[AttrStatusCode]
	assert.False(t, hasStatus)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "connection reset", ended[0].Status().Description)
}

func TestSpanHelpersTolerateNilTracer(t *testing.T) {
	ctx, relay := StartRelaySpan(context.Background(), nil)
	_, hop := StartHopSpan(ctx, nil, 0, "initial")
	assert.NotPanics(t, func() {
		hop.End(http.StatusOK, nil)
		relay.Target("::not a url", "file.bin")
		relay.End("streamed", 1)
	})
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

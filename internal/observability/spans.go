package observability

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span names
const (
	SpanRelayDownload = "mlwio.relay.download"
	SpanRelayHop      = "mlwio.relay.hop"
	SpanHTTPServer    = "mlwio.http.request"
)

// Attribute keys
const (
	AttrSourceHost = "mlwio.relay.source_host"
	AttrFilename   = "mlwio.relay.filename"
	AttrHop        = "mlwio.relay.hop"
	AttrHopKind    = "mlwio.relay.hop_kind"
	AttrStatusCode = "mlwio.relay.upstream_status"
	AttrOutcome    = "mlwio.relay.outcome"
	AttrBytes      = "mlwio.relay.bytes"
	AttrError      = "mlwio.error"
)

func tracerOrNoop(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(defaultServiceName)
	}
	return tracer
}

// RelaySpan covers one download relay run from request to last byte.
type RelaySpan struct {
	span trace.Span
}

// StartRelaySpan opens the span for a relay run.
func StartRelaySpan(ctx context.Context, tracer trace.Tracer) (context.Context, *RelaySpan) {
	ctx, span := tracerOrNoop(tracer).Start(ctx, SpanRelayDownload, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &RelaySpan{span: span}
}

// Target records which source is being relayed and under what filename.
// Only the host of the source is kept; query strings may carry tokens.
func (s *RelaySpan) Target(sourceURL, filename string) {
	if u, err := url.Parse(sourceURL); err == nil && u.Hostname() != "" {
		s.span.SetAttributes(attribute.String(AttrSourceHost, u.Hostname()))
	}
	s.span.SetAttributes(attribute.String(AttrFilename, filename))
}

// RecordError attaches err without marking the run failed. Fallback
// redirects and client disconnects end up here.
func (s *RelaySpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}

// Fail attaches err and marks the span as an error with reason.
func (s *RelaySpan) Fail(err error, reason string) {
	s.RecordError(err)
	s.span.SetStatus(codes.Error, reason)
}

// End closes the span with the run outcome and streamed byte count.
func (s *RelaySpan) End(outcome string, bytes int64) {
	s.span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int64(AttrBytes, bytes),
	)
	s.span.End()
}

// HopSpan covers a single upstream fetch inside a relay run.
type HopSpan struct {
	span trace.Span
}

// StartHopSpan opens a child span for upstream fetch number hop. kind says
// why the fetch happened (initial, redirect, interstitial).
func StartHopSpan(ctx context.Context, tracer trace.Tracer, hop int, kind string) (context.Context, *HopSpan) {
	ctx, span := tracerOrNoop(tracer).Start(ctx, SpanRelayHop,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int(AttrHop, hop),
			attribute.String(AttrHopKind, kind),
		))
	return ctx, &HopSpan{span: span}
}

// End closes the hop. A non-nil err marks it failed; otherwise the upstream
// status is recorded.
func (s *HopSpan) End(status int, err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetAttributes(attribute.Bool(AttrError, true))
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetAttributes(attribute.Int(AttrStatusCode, status))
	}
	s.span.End()
}

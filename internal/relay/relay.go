package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mlwio/internal/observability"
	"mlwio/internal/shared/logging"
)

// DefaultMaxHops is the shared budget for redirect and interstitial re-fetches.
const DefaultMaxHops = 5

const (
	messageURLRequired = "Download URL required"
	messageFailed      = "Download failed"

	hopInitial      = "initial"
	hopRedirect     = "redirect"
	hopInterstitial = "interstitial"

	outcomeStreamed    = "streamed"
	outcomeFallback    = "fallback_redirect"
	outcomeBadRequest  = "bad_request"
	outcomeFailed      = "failed"
	outcomeCanceled    = "canceled"
	outcomeInterrupted = "interrupted"
)

var errResolveTimeout = errors.New("resolve timeout exceeded")

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

// Recorder receives relay metrics. *observability.MetricsCollector satisfies it.
type Recorder interface {
	RecordRelay(ctx context.Context, outcome string, duration time.Duration, bytes int64)
	RecordHop(ctx context.Context, kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRelay(context.Context, string, time.Duration, int64) {}
func (nopRecorder) RecordHop(context.Context, string)                         {}

// Options configures a Relay. Zero values select defaults.
type Options struct {
	// MaxHops bounds redirects plus interstitial re-fetches per request.
	MaxHops int
	// ResolveTimeout bounds everything before the first body byte.
	ResolveTimeout time.Duration
	// Timeout bounds the whole run including streaming. Zero disables it.
	Timeout  time.Duration
	Resolver InterstitialResolver
	// CheckURL vets every upstream target before it is fetched.
	CheckURL func(*url.URL) error
	Tracer   trace.Tracer
	Metrics  Recorder
	Logger   logging.Logger
}

// Relay serves GET /api/download. It holds no per-request state and is safe
// for concurrent use.
type Relay struct {
	fetcher        Fetcher
	resolver       InterstitialResolver
	maxHops        int
	resolveTimeout time.Duration
	timeout        time.Duration
	checkURL       func(*url.URL) error
	tracer         trace.Tracer
	metrics        Recorder
	logger         logging.Logger
}

// New builds a Relay around fetcher.
func New(fetcher Fetcher, opts Options) *Relay {
	r := &Relay{
		fetcher:        fetcher,
		resolver:       opts.Resolver,
		maxHops:        opts.MaxHops,
		resolveTimeout: opts.ResolveTimeout,
		timeout:        opts.Timeout,
		checkURL:       opts.CheckURL,
		tracer:         opts.Tracer,
		metrics:        opts.Metrics,
		logger:         logging.OrNop(opts.Logger),
	}
	if r.resolver == nil {
		r.resolver = NewHTMLResolver(DefaultMaxInterstitialBytes)
	}
	if r.maxHops <= 0 {
		r.maxHops = DefaultMaxHops
	}
	if r.metrics == nil {
		r.metrics = nopRecorder{}
	}
	return r
}

// ServeHTTP runs one relay: normalize, fetch, follow hops, stream.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	started := time.Now()
	ctx, span := observability.StartRelaySpan(req.Context(), r.tracer)

	var written int64
	outcome := outcomeFailed
	defer func() {
		span.End(outcome, written)
		r.metrics.RecordRelay(ctx, outcome, time.Since(started), written)
	}()

	query := req.URL.Query()
	dreq, err := ParseDownloadRequest(query.Get("url"), query.Get("title"))
	if err != nil {
		outcome = outcomeBadRequest
		writeJSONError(w, http.StatusBadRequest, messageURLRequired)
		return
	}

	target := Normalize(dreq)
	span.Target(dreq.SourceURL, target.AttachmentFilename)
	r.logger.Info("Download requested: %s", target.AttachmentFilename)
	stageAttachmentHeaders(w.Header(), target.AttachmentFilename)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if r.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, r.timeout)
		defer cancelTimeout()
	}

	resp, err := r.resolveBounded(runCtx, cancel, target)
	if err != nil {
		switch {
		case KindOf(err) == KindInterstitialUnresolvable:
			outcome = outcomeFallback
			span.RecordError(err)
			r.logger.Warn("Interstitial for %s unresolvable; redirecting client to source", target.AttachmentFilename)
			clearAttachmentHeaders(w.Header())
			http.Redirect(w, req, dreq.SourceURL, http.StatusFound)
		case req.Context().Err() != nil:
			outcome = outcomeCanceled
			span.RecordError(err)
			r.logger.Debug("Client left before download of %s started", target.AttachmentFilename)
		default:
			span.Fail(err, KindOf(err).String())
			r.logger.Error("Download error for %s: %v", target.AttachmentFilename, err)
			writeJSONError(w, http.StatusInternalServerError, messageFailed)
		}
		return
	}

	written, err = r.stream(w, resp)
	if err == nil {
		outcome = outcomeStreamed
		return
	}

	err = newError(KindStreamingInterrupted, "stream", err)
	span.RecordError(err)
	outcome = outcomeInterrupted
	if req.Context().Err() != nil {
		r.logger.Debug("Client disconnected from %s after %d bytes", target.AttachmentFilename, written)
		return
	}
	r.logger.Warn("Upstream stream for %s broke after %d bytes: %v", target.AttachmentFilename, written, err)
	// Headers are gone; abort the connection so the client sees a truncated
	// transfer instead of a clean end of body.
	panic(http.ErrAbortHandler)
}

// resolveBounded runs Resolve under the resolve timeout. The deadline cancels
// the shared run context, so it must be settled before streaming starts.
func (r *Relay) resolveBounded(ctx context.Context, cancel context.CancelCauseFunc, target ResolvedTarget) (*UpstreamResponse, error) {
	if r.resolveTimeout <= 0 {
		return r.Resolve(ctx, target)
	}
	deadline := startResolveDeadline(r.resolveTimeout, cancel)
	resp, err := r.Resolve(ctx, target)
	if !deadline.settle() {
		if resp != nil {
			resp.Close()
		}
		return nil, newError(KindUpstreamUnreachable, "resolve", errResolveTimeout)
	}
	return resp, err
}

// resolveDeadline races the resolve phase against a timer. Whichever side
// claims it first wins: an expired deadline cancels the run, a settled one
// leaves the run context alone even if the timer fires afterwards.
type resolveDeadline struct {
	claimed atomic.Bool
	timer   *time.Timer
}

func startResolveDeadline(d time.Duration, cancel context.CancelCauseFunc) *resolveDeadline {
	g := &resolveDeadline{}
	g.timer = time.AfterFunc(d, func() { g.expire(cancel) })
	return g
}

func (g *resolveDeadline) expire(cancel context.CancelCauseFunc) {
	if g.claimed.CompareAndSwap(false, true) {
		cancel(errResolveTimeout)
	}
}

// settle reports whether resolution finished before the deadline expired.
func (g *resolveDeadline) settle() bool {
	if g.timer != nil {
		g.timer.Stop()
	}
	return g.claimed.CompareAndSwap(false, true)
}

// Resolve fetches target and walks redirects and interstitial pages until it
// holds the response to stream. The caller owns the returned response.
func (r *Relay) Resolve(ctx context.Context, target ResolvedTarget) (*UpstreamResponse, error) {
	resp, err := r.fetch(ctx, target.FetchURL, 0, hopInitial)
	if err != nil {
		return nil, err
	}

	hops := 0
	for {
		if IsRedirect(resp.StatusCode) {
			if hops >= r.maxHops {
				resp.Close()
				return nil, newError(KindTooManyRedirects, "redirect", fmt.Errorf("exceeded %d hops", r.maxHops))
			}
			hops++
			hop := hops
			next := FetcherFunc(func(ctx context.Context, location string, _ http.Header) (*UpstreamResponse, error) {
				return r.fetch(ctx, location, hop, hopRedirect)
			})
			if resp, err = FollowRedirect(ctx, next, resp); err != nil {
				return nil, err
			}
			continue
		}

		res, err := r.resolver.Resolve(ctx, resp)
		if err != nil {
			return nil, err
		}
		switch res.Kind {
		case Direct:
			return res.Response, nil
		case NeedsRefetch:
			if hops >= r.maxHops {
				return nil, newError(KindTooManyRedirects, "interstitial", fmt.Errorf("exceeded %d hops", r.maxHops))
			}
			hops++
			if resp, err = r.fetch(ctx, res.NextURL, hops, hopInterstitial); err != nil {
				return nil, err
			}
		default:
			return nil, newError(KindInterstitialUnresolvable, "resolve", nil)
		}
	}
}

func (r *Relay) fetch(ctx context.Context, target string, hop int, kind string) (resp *UpstreamResponse, err error) {
	ctx, span := observability.StartHopSpan(ctx, r.tracer, hop, kind)
	defer func() {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		span.End(status, err)
	}()

	if r.checkURL != nil {
		parsed, err := url.Parse(target)
		if err == nil {
			err = r.checkURL(parsed)
		}
		if err != nil {
			return nil, newError(KindUpstreamUnreachable, "fetch", fmt.Errorf("target rejected: %w", err))
		}
	}
	if hop > 0 {
		r.metrics.RecordHop(ctx, kind)
	}

	resp, err = r.fetcher.Fetch(ctx, target, nil)
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = newError(KindUpstreamUnreachable, "fetch", err)
		}
		return nil, err
	}
	return resp, nil
}

// stream copies resp to w with a pooled buffer. Reads are driven by writes, so
// a slow client slows the upstream read.
func (r *Relay) stream(w http.ResponseWriter, resp *UpstreamResponse) (int64, error) {
	defer resp.Close()

	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)

	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)
	return io.CopyBuffer(writerOnly{w}, readerOnly{resp.Body}, *bufp)
}

// writerOnly and readerOnly hide ReadFrom/WriteTo so CopyBuffer uses the
// pooled buffer.
type writerOnly struct{ io.Writer }

type readerOnly struct{ io.Reader }

func stageAttachmentHeaders(h http.Header, filename string) {
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Cache-Control", "no-cache")
}

func clearAttachmentHeaders(h http.Header) {
	h.Del("Content-Disposition")
	h.Del("Content-Type")
	h.Del("Content-Length")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	clearAttachmentHeaders(w.Header())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

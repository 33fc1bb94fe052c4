package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

type route struct {
	status        int
	header        http.Header
	body          string
	contentLength bool
	// stall makes the body yield body once and then block until the request
	// context ends or the body is closed.
	stall bool
	// breakAfter makes the body fail after yielding body.
	breakAfter bool
	// hang makes Fetch itself block until the context ends.
	hang bool
}

// fakeFetcher serves canned routes and tracks how many bodies are open.
type fakeFetcher struct {
	mu        sync.Mutex
	routes    map[string]route
	requested []string
	live      int
	maxLive   int
	closed    int
	headers   []http.Header
}

func newFakeFetcher(routes map[string]route) *fakeFetcher {
	return &fakeFetcher{routes: routes}
}

func (f *fakeFetcher) Fetch(ctx context.Context, target string, header http.Header) (*UpstreamResponse, error) {
	f.mu.Lock()
	f.requested = append(f.requested, target)
	f.headers = append(f.headers, header)
	rt, ok := f.routes[target]
	f.mu.Unlock()

	if !ok {
		return nil, errors.New("dial tcp: no such host")
	}
	if rt.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	f.mu.Unlock()

	hdr := http.Header{}
	for k, v := range rt.header {
		hdr[k] = append([]string(nil), v...)
	}
	length := int64(-1)
	if rt.contentLength {
		length = int64(len(rt.body))
		hdr.Set("Content-Length", strconv.Itoa(len(rt.body)))
	}
	status := rt.status
	if status == 0 {
		status = http.StatusOK
	}
	u, _ := url.Parse(target)
	return &UpstreamResponse{
		StatusCode:    status,
		Header:        hdr,
		ContentLength: length,
		Body:          newFakeBody(ctx, f, rt),
		URL:           u,
	}, nil
}

func (f *fakeFetcher) snapshot() (requested []string, live, maxLive, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...), f.live, f.maxLive, f.closed
}

type fakeBody struct {
	ctx    context.Context
	owner  *fakeFetcher
	data   *strings.Reader
	stall  bool
	broken bool
	done   chan struct{}
	once   sync.Once
}

func newFakeBody(ctx context.Context, owner *fakeFetcher, rt route) *fakeBody {
	return &fakeBody{
		ctx:    ctx,
		owner:  owner,
		data:   strings.NewReader(rt.body),
		stall:  rt.stall,
		broken: rt.breakAfter,
		done:   make(chan struct{}),
	}
}

func (b *fakeBody) Read(p []byte) (int, error) {
	if b.data.Len() > 0 {
		return b.data.Read(p)
	}
	switch {
	case b.stall:
		select {
		case <-b.ctx.Done():
			return 0, b.ctx.Err()
		case <-b.done:
			return 0, errors.New("read on closed body")
		}
	case b.broken:
		return 0, io.ErrUnexpectedEOF
	default:
		return 0, io.EOF
	}
}

func (b *fakeBody) Close() error {
	b.once.Do(func() {
		close(b.done)
		b.owner.mu.Lock()
		b.owner.live--
		b.owner.closed++
		b.owner.mu.Unlock()
	})
	return nil
}

// recordingMetrics captures relay outcomes.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	hops     []string
	bytes    int64
}

func (m *recordingMetrics) RecordRelay(_ context.Context, outcome string, _ time.Duration, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	m.bytes += bytes
}

func (m *recordingMetrics) RecordHop(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hops = append(m.hops, kind)
}

func htmlHeader() http.Header {
	return http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}
}

func binaryHeader() http.Header {
	return http.Header{"Content-Type": []string{"application/octet-stream"}}
}

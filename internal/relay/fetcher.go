package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"mlwio/internal/shared/logging"
)

// UpstreamResponse is one fetched upstream response. Body can be read once;
// whichever stage holds the response last must Close it.
type UpstreamResponse struct {
	StatusCode    int
	Header        http.Header
	ContentLength int64
	Body          io.ReadCloser
	// URL is the request URL, used to resolve relative Location and form
	// action values.
	URL *url.URL

	closeOnce sync.Once
	closeErr  error
}

// Close releases the underlying connection. It is safe to call more than once.
func (r *UpstreamResponse) Close() error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		if r.Body != nil {
			r.closeErr = r.Body.Close()
		}
	})
	return r.closeErr
}

// Fetcher issues a single upstream GET and returns once headers arrive.
// Implementations must not follow redirects.
type Fetcher interface {
	Fetch(ctx context.Context, target string, header http.Header) (*UpstreamResponse, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, target string, header http.Header) (*UpstreamResponse, error)

func (f FetcherFunc) Fetch(ctx context.Context, target string, header http.Header) (*UpstreamResponse, error) {
	return f(ctx, target, header)
}

// HTTPFetcher is the net/http Fetcher. The client must be built with
// redirects disabled (see httpclient.New).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	logger    logging.Logger
}

// NewHTTPFetcher wraps client.
func NewHTTPFetcher(client *http.Client, userAgent string, logger logging.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
		logger:    logging.OrNop(logger),
	}
}

// Fetch performs the GET. Transport failures are reported as
// KindUpstreamUnreachable and never retried here.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string, header http.Header) (*UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, newError(KindUpstreamUnreachable, "fetch", fmt.Errorf("build request: %w", err))
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			f.logger.Debug("Upstream fetch of %s canceled", req.URL.Host)
		} else {
			f.logger.Warn("Upstream fetch of %s failed: %v", req.URL.Host, err)
		}
		return nil, newError(KindUpstreamUnreachable, "fetch", err)
	}
	return &UpstreamResponse{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
		URL:           req.URL,
	}, nil
}

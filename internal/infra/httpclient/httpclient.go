package httpclient

import (
	"net"
	"net/http"
	"time"

	"mlwio/internal/shared/logging"
)

// Options configures the outbound client used by the download relay.
type Options struct {
	// Timeout bounds the whole exchange including the body. Zero means no
	// overall deadline, which is what long streaming transfers need.
	Timeout time.Duration
	// FollowRedirects lets net/http chase Location headers. The relay keeps
	// this off and walks redirects itself so it can count hops.
	FollowRedirects bool
	// AllowPrivateNetworks disables the dial guard that refuses loopback,
	// private and link-local peers.
	AllowPrivateNetworks bool
	// ResponseHeaderTimeout bounds the wait for upstream headers.
	ResponseHeaderTimeout time.Duration
	Logger                logging.Logger
}

// New returns an http.Client configured for outbound requests.
func New(opts Options) *http.Client {
	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: Transport(opts),
	}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// Transport returns an http.Transport clone tuned for large streaming bodies.
// Compression is left to the origin so Content-Length survives the relay.
func Transport(opts Options) *http.Transport {
	logger := logging.OrNop(opts.Logger)

	var transport *http.Transport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = base.Clone()
	} else {
		transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}

	transport.DisableCompression = true
	transport.MaxIdleConnsPerHost = 16
	if opts.ResponseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if !opts.AllowPrivateNetworks {
		dialer.Control = dialGuard(logger)
	}
	transport.DialContext = dialer.DialContext
	return transport
}

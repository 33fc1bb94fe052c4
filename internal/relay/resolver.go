package relay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResolutionKind is the verdict of an InterstitialResolver.
type ResolutionKind int

const (
	// Direct means the response is the file (or a genuine error) and should
	// be streamed as is.
	Direct ResolutionKind = iota
	// NeedsRefetch means the response was a confirmation page naming a
	// second-stage URL.
	NeedsRefetch
	// Unresolvable means the response was a confirmation page without a
	// usable link.
	Unresolvable
)

func (k ResolutionKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case NeedsRefetch:
		return "needs_refetch"
	case Unresolvable:
		return "unresolvable"
	default:
		return "unknown"
	}
}

// Resolution carries the verdict. Response is set only for Direct and hands
// ownership back to the caller; for the other kinds the resolver has already
// closed the body.
type Resolution struct {
	Kind     ResolutionKind
	Response *UpstreamResponse
	NextURL  string
}

// InterstitialResolver decides whether a response is a "confirm download" page.
type InterstitialResolver interface {
	Resolve(ctx context.Context, resp *UpstreamResponse) (Resolution, error)
}

// Page is a buffered interstitial candidate handed to each PageScanner.
type Page struct {
	URL      *url.URL
	Document *goquery.Document
}

// PageScanner looks for a second-stage download URL on a page. Scanners are
// best-effort adapters for one host's markup.
type PageScanner interface {
	Scan(page *Page) (string, bool)
}

// PageScannerFunc adapts a function to PageScanner.
type PageScannerFunc func(page *Page) (string, bool)

func (f PageScannerFunc) Scan(page *Page) (string, bool) { return f(page) }

// DefaultMaxInterstitialBytes bounds how much of a candidate page is buffered.
const DefaultMaxInterstitialBytes int64 = 1 << 20

// HTMLResolver buffers 200 text/html responses and runs its scanners in order.
// The first scanner to return a URL wins.
type HTMLResolver struct {
	maxBytes int64
	scanners []PageScanner
}

// NewHTMLResolver builds a resolver. With no scanners it uses DriveScanners.
func NewHTMLResolver(maxBytes int64, scanners ...PageScanner) *HTMLResolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxInterstitialBytes
	}
	if len(scanners) == 0 {
		scanners = DriveScanners()
	}
	return &HTMLResolver{maxBytes: maxBytes, scanners: scanners}
}

// IsInterstitialCandidate reports whether resp looks like an HTML page served
// in place of a file.
func IsInterstitialCandidate(resp *UpstreamResponse) bool {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html")
}

// Resolve implements InterstitialResolver.
func (r *HTMLResolver) Resolve(ctx context.Context, resp *UpstreamResponse) (Resolution, error) {
	if !IsInterstitialCandidate(resp) {
		return Resolution{Kind: Direct, Response: resp}, nil
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		resp.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return Resolution{}, newError(KindUpstreamUnreachable, "resolve", err)
	}
	if int64(len(buf)) > r.maxBytes {
		// Too large for a confirmation page: replay what was read and stream
		// the rest untouched.
		resp.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(buf), resp.Body), closer: resp.Body}
		return Resolution{Kind: Direct, Response: resp}, nil
	}
	resp.Close()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf))
	if err != nil {
		return Resolution{Kind: Unresolvable}, nil
	}
	page := &Page{URL: resp.URL, Document: doc}
	for _, scanner := range r.scanners {
		if next, ok := scanner.Scan(page); ok {
			return Resolution{Kind: NeedsRefetch, NextURL: next}, nil
		}
	}
	return Resolution{Kind: Unresolvable}, nil
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }

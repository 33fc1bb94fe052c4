package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// IsRedirect reports whether status is a redirect the relay follows.
func IsRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// RedirectTarget resolves resp's Location header against its request URL.
// The scheme of the result selects the transport for the next hop.
func RedirectTarget(resp *UpstreamResponse) (string, error) {
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return "", newError(KindRedirectLocationMissing, "redirect", nil)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", newError(KindRedirectLocationMissing, "redirect", fmt.Errorf("parse location: %w", err))
	}
	if resp.URL != nil {
		ref = resp.URL.ResolveReference(ref)
	}
	switch strings.ToLower(ref.Scheme) {
	case "http", "https":
	default:
		return "", newError(KindUpstreamUnreachable, "redirect", fmt.Errorf("unsupported redirect scheme %q", ref.Scheme))
	}
	return ref.String(), nil
}

// FollowRedirect closes resp and fetches its Location with f. The prior body
// is released before the next connection is opened.
func FollowRedirect(ctx context.Context, f Fetcher, resp *UpstreamResponse) (*UpstreamResponse, error) {
	target, err := RedirectTarget(resp)
	resp.Close()
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, target, nil)
}

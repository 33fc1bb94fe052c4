package httpclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"mlwio/internal/shared/logging"
)

// ErrBlockedAddress is returned when a dial targets a local or private peer.
var ErrBlockedAddress = errors.New("outbound address is not allowed")

// URLValidationOptions controls outbound URL validation rules.
type URLValidationOptions struct {
	AllowLocalhost       bool
	AllowPrivateNetworks bool
}

// DefaultURLValidationOptions returns the baseline outbound fetch rules.
func DefaultURLValidationOptions() URLValidationOptions {
	return URLValidationOptions{}
}

// ValidateOutboundURL ensures the URL is well-formed, uses http(s) and avoids
// local/private targets unless the options allow them.
func ValidateOutboundURL(raw string, opts URLValidationOptions) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if err := CheckURL(parsed, opts); err != nil {
		return nil, err
	}
	return parsed, nil
}

// CheckURL applies the same rules as ValidateOutboundURL to a parsed URL.
// Redirect targets go through here before they are followed.
func CheckURL(u *url.URL, opts URLValidationOptions) error {
	if u == nil {
		return fmt.Errorf("url is required")
	}
	scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return fmt.Errorf("url host is required")
	}
	if !opts.AllowLocalhost && isLocalHostname(host) {
		return fmt.Errorf("local urls are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if !opts.AllowLocalhost && (ip.IsLoopback() || ip.IsUnspecified()) {
			return fmt.Errorf("local urls are not allowed")
		}
		if !opts.AllowPrivateNetworks && isPrivateIP(ip) {
			return fmt.Errorf("private network urls are not allowed")
		}
	}
	return nil
}

// dialGuard rejects connections whose resolved peer is local or private.
// Hostname checks alone miss DNS names that point inside the network.
func dialGuard(logger logging.Logger) func(network, address string, _ syscall.RawConn) error {
	return func(network, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return err
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return nil
		}
		if ip.IsLoopback() || ip.IsUnspecified() || isPrivateIP(ip) {
			logger.Warn("Refusing outbound dial to %s", address)
			return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
		}
		return nil
	}
}

func isLocalHostname(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

// reservedNetworks are non-public ranges that net.IP.IsPrivate does not cover.
var reservedNetworks = mustParseCIDRs(
	"100.64.0.0/10", // carrier-grade NAT
	"198.18.0.0/15", // benchmarking
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range reservedNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

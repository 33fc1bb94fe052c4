package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlwio/internal/shared/logging"
)

func TestNewDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("end"))
	}))
	defer srv.Close()

	client := New(Options{AllowPrivateNetworks: true})
	resp, err := client.Get(srv.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/end", resp.Header.Get("Location"))
}

func TestNewFollowsRedirectsWhenAsked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("end"))
	}))
	defer srv.Close()

	client := New(Options{AllowPrivateNetworks: true, FollowRedirects: true})
	resp, err := client.Get(srv.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDialGuardRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := New(Options{})
	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlockedAddress), "got %v", err)
}

func TestDialGuardRefusesReservedRanges(t *testing.T) {
	guard := dialGuard(logging.Nop())
	for _, addr := range []string{
		"10.0.0.1:443",
		"100.64.12.3:443",
		"198.18.0.10:80",
		"[fd00::1]:443",
		"169.254.169.254:80",
	} {
		err := guard("tcp", addr, nil)
		assert.ErrorIs(t, err, ErrBlockedAddress, addr)
	}
	assert.NoError(t, guard("tcp", "142.250.72.14:443", nil))
	assert.NoError(t, guard("tcp", "198.20.0.1:443", nil))
}

func TestValidateOutboundURL(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		opts    URLValidationOptions
		wantErr bool
	}{
		{name: "public https", raw: "https://drive.google.com/file/d/abc/view"},
		{name: "public http", raw: "http://files.example.com/a.mp4"},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "ftp scheme", raw: "ftp://files.example.com/a.mp4", wantErr: true},
		{name: "javascript scheme", raw: "javascript:alert(1)", wantErr: true},
		{name: "no host", raw: "https:///path", wantErr: true},
		{name: "localhost", raw: "http://localhost:8080/x", wantErr: true},
		{name: "sub localhost", raw: "http://api.localhost/x", wantErr: true},
		{name: "loopback ip", raw: "http://127.0.0.1/x", wantErr: true},
		{name: "private ip", raw: "http://10.1.2.3/x", wantErr: true},
		{name: "link local", raw: "http://169.254.169.254/latest", wantErr: true},
		{name: "carrier grade nat", raw: "http://100.64.0.1/x", wantErr: true},
		{name: "carrier grade nat upper", raw: "http://100.127.255.254/x", wantErr: true},
		{name: "benchmark range", raw: "http://198.18.0.1/x", wantErr: true},
		{name: "benchmark range upper", raw: "http://198.19.255.254/x", wantErr: true},
		{name: "just outside nat range", raw: "http://100.128.0.1/x"},
		{name: "private allowed", raw: "http://10.1.2.3/x", opts: URLValidationOptions{AllowPrivateNetworks: true}},
		{name: "localhost allowed", raw: "http://127.0.0.1/x", opts: URLValidationOptions{AllowLocalhost: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateOutboundURL(tc.raw, tc.opts)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

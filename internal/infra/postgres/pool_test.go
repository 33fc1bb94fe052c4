package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemaStub struct {
	calls *[]string
	name  string
	err   error
}

func (s schemaStub) EnsureSchema(context.Context) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Options{URL: "  "})
	require.Error(t, err)
}

func TestConnectRejectsMalformedURL(t *testing.T) {
	_, err := Connect(context.Background(), Options{URL: "postgres://%zz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}

func TestConnectGivesUpAfterBackoff(t *testing.T) {
	opts := Options{
		// Port 1 on loopback refuses connections immediately.
		URL: "postgres://user:pw@127.0.0.1:1/mlwio?connect_timeout=1",
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Connect(ctx, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping db")
}

func TestEnsureSchemasStopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	err := EnsureSchemas(context.Background(),
		schemaStub{calls: &calls, name: "content"},
		nil,
		schemaStub{calls: &calls, name: "users", err: boom},
		schemaStub{calls: &calls, name: "sessions"},
	)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"content", "users"}, calls)
}

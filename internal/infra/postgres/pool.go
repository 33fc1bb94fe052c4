package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"mlwio/internal/shared/logging"
)

// Options controls how the shared pool is opened.
type Options struct {
	URL            string
	MaxConns       int32
	ConnectTimeout time.Duration
	// NewBackOff overrides the retry policy used while the database comes up.
	NewBackOff func() backoff.BackOff
	Logger     logging.Logger
}

// SchemaInitializer is implemented by stores that create their own tables.
type SchemaInitializer interface {
	EnsureSchema(ctx context.Context) error
}

// Connect opens a pgx pool and waits for the database to answer a ping.
// Pings are retried with exponential backoff until ConnectTimeout elapses.
func Connect(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	logger := logging.OrNop(opts.Logger)
	dbURL := strings.TrimSpace(opts.URL)
	if dbURL == "" {
		return nil, errors.New("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}

	b := opts.newBackOff()
	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			logger.Warn("Database ping attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	logger.Info("Connected to Postgres %s (max_conns=%d)", cfg.ConnConfig.Host, cfg.MaxConns)
	return pool, nil
}

// EnsureSchemas runs EnsureSchema on each store in order.
func EnsureSchemas(ctx context.Context, stores ...SchemaInitializer) error {
	for _, store := range stores {
		if store == nil {
			continue
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (o Options) newBackOff() backoff.BackOff {
	if o.NewBackOff != nil {
		return o.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = o.ConnectTimeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 10 * time.Second
	}
	return b
}

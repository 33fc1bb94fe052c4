package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mlwio/internal/config"
	"mlwio/internal/observability"
	serverhttp "mlwio/internal/server/http"
	"mlwio/internal/shared/logging"
)

const (
	shutdownTimeout         = 10 * time.Second
	sessionSweepInterval    = time.Hour
	serverReadHeaderTimeout = 10 * time.Second
	serverIdleTimeout       = 120 * time.Second
)

// RunServer builds the container, listens on cfg.Port and blocks until ctx
// is cancelled or SIGINT/SIGTERM arrives.
func RunServer(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewComponentLogger("Main")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := BuildContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := container.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Container shutdown: %v", err)
		}
	}()

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
	}
	return Serve(ctx, container, ln, logger)
}

// Handler builds the HTTP router for a container.
func (c *Container) Handler() http.Handler {
	cfg := c.Config
	return serverhttp.NewRouter(serverhttp.RouterDeps{
		Auth:           c.Auth,
		Catalog:        c.Catalog,
		Download:       c.Relay,
		HTTPMetrics:    c.HTTPMetrics,
		MetricsHandler: c.metricsHandler(),
		Tracer:         c.Tracing.Tracer(),
		Degraded:       c.Degraded.Map,
	}, serverhttp.RouterConfig{
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Cookie: serverhttp.CookieConfig{
			Name: cfg.Auth.CookieName,
			TTL:  cfg.Auth.SessionTTL,
		},
		RateLimit: serverhttp.RateLimitConfig{
			RequestsPerMinute: cfg.Relay.RateLimitPerMinute,
			Burst:             cfg.Relay.RateLimitBurst,
		},
		MetricsPath: cfg.Metrics.Path,
		StaticDir:   cfg.StaticDir,
	})
}

func (c *Container) metricsHandler() http.Handler {
	if !c.Config.Metrics.Enabled {
		return nil
	}
	return observability.Handler(c.Registry)
}

// Serve runs the HTTP server on ln alongside the session sweeper. It returns
// nil after a graceful shutdown triggered by ctx.
func Serve(ctx context.Context, c *Container, ln net.Listener, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	server := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("MLWIO API listening on %s (env=%s)", ln.Addr(), c.Config.Environment)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		sweepSessions(groupCtx, c, sessionSweepInterval, logger)
		return nil
	})
	return group.Wait()
}

func sweepSessions(ctx context.Context, c *Container, interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.Auth.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("Session sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				logger.Debug("Removed %d expired sessions", removed)
			}
		}
	}
}

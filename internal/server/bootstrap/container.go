package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	authadapters "mlwio/internal/auth/adapters"
	authapp "mlwio/internal/auth/app"
	authports "mlwio/internal/auth/ports"
	catalogadapters "mlwio/internal/catalog/adapters"
	catalogapp "mlwio/internal/catalog/app"
	catalogports "mlwio/internal/catalog/ports"
	"mlwio/internal/config"
	"mlwio/internal/infra/crypto"
	"mlwio/internal/infra/httpclient"
	"mlwio/internal/infra/postgres"
	"mlwio/internal/observability"
	"mlwio/internal/relay"
	"mlwio/internal/shared/logging"
)

// Version is reported to the tracing backend. The CLI overrides it at link
// time.
var Version = "dev"

// Container holds every long-lived component of the server.
type Container struct {
	Config       *config.Config
	Auth         *authapp.Service
	Catalog      *catalogapp.Service
	Relay        *relay.Relay
	Registry     *prometheus.Registry
	HTTPMetrics  *observability.HTTPMetrics
	RelayMetrics *observability.MetricsCollector
	Tracing      *observability.TracerProvider
	Degraded     *DegradedComponents

	pool   *pgxpool.Pool
	logger logging.Logger
}

// BuildContainer wires stores, services and the relay from cfg. Required
// stages abort on failure; optional ones are recorded in Degraded.
func BuildContainer(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	logger = logging.OrNop(logger)
	c := &Container{Config: cfg, Degraded: NewDegradedComponents(), logger: logger}

	stages := []BootstrapStage{
		{Name: "observability", Required: true, Init: c.initObservability},
		{Name: "stores", Required: true, Init: func() error { return c.initStores(ctx) }},
		{Name: "relay", Required: true, Init: c.initRelay},
		{Name: "admin-account", Required: false, Init: func() error { return c.ensureAdmin(ctx) }},
		{Name: "catalog-seed", Required: false, Init: func() error {
			_, err := c.seedCatalog(ctx)
			return err
		}},
	}
	if err := RunStages(stages, c.Degraded, logger); err != nil {
		_ = c.Shutdown(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Container) initObservability() error {
	c.Registry = observability.NewRegistry()
	c.HTTPMetrics = observability.NewHTTPMetrics(c.Registry)

	collector, err := observability.NewMetricsCollector(c.Registry)
	if err != nil {
		return fmt.Errorf("relay metrics: %w", err)
	}
	c.RelayMetrics = collector

	tracing := c.Config.Tracing
	provider, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        tracing.Enabled,
		Exporter:       tracing.Exporter,
		OTLPEndpoint:   tracing.OTLPEndpoint,
		ZipkinEndpoint: tracing.ZipkinEndpoint,
		SampleRate:     tracing.SampleRate,
		ServiceName:    "mlwio",
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	c.Tracing = provider
	return nil
}

func (c *Container) initStores(ctx context.Context) error {
	var (
		users    authports.UserRepository
		sessions authports.SessionRepository
		content  catalogports.ContentStore
		logs     catalogports.UploadLogStore
	)

	if c.Config.UsesDatabase() {
		pool, err := postgres.Connect(ctx, postgres.Options{
			URL:            c.Config.Database.URL,
			MaxConns:       c.Config.Database.MaxConns,
			ConnectTimeout: c.Config.Database.ConnectTimeout,
			Logger:         logging.NewComponentLogger("Postgres"),
		})
		if err != nil {
			return err
		}
		c.pool = pool

		pgUsers, pgSessions := authadapters.NewPostgresStores(pool)
		pgContent, pgLogs := catalogadapters.NewPostgresStores(pool)
		if err := postgres.EnsureSchemas(ctx, pgUsers, pgSessions, pgContent, pgLogs); err != nil {
			return err
		}
		users, sessions, content, logs = pgUsers, pgSessions, pgContent, pgLogs
		c.logger.Info("Stores: Postgres")
	} else {
		memUsers, memSessions := authadapters.NewMemoryStores()
		memContent, memLogs := catalogadapters.NewMemoryStores()
		users, sessions, content, logs = memUsers, memSessions, memContent, memLogs
		c.logger.Info("Stores: in-memory (no database.url configured)")
	}

	c.Auth = authapp.NewService(users, sessions, crypto.NewPasswordHasher(crypto.DefaultParams), authapp.Config{
		SessionTTL: c.Config.Auth.SessionTTL,
	})
	c.Catalog = catalogapp.NewService(content, logs)
	return nil
}

func (c *Container) initRelay() error {
	relayCfg := c.Config.Relay
	logger := logging.NewComponentLogger("Relay")

	client := httpclient.New(httpclient.Options{
		AllowPrivateNetworks:  relayCfg.AllowPrivateNetworks,
		ResponseHeaderTimeout: relayCfg.ResolveTimeout,
		Logger:                logger,
	})
	validation := httpclient.URLValidationOptions{
		AllowLocalhost:       relayCfg.AllowPrivateNetworks,
		AllowPrivateNetworks: relayCfg.AllowPrivateNetworks,
	}

	c.Relay = relay.New(relay.NewHTTPFetcher(client, relayCfg.UserAgent, logger), relay.Options{
		MaxHops:        relayCfg.MaxHops,
		ResolveTimeout: relayCfg.ResolveTimeout,
		Timeout:        relayCfg.Timeout,
		Resolver:       relay.NewHTMLResolver(relayCfg.MaxInterstitialBytes),
		CheckURL: func(u *url.URL) error {
			return httpclient.CheckURL(u, validation)
		},
		Tracer:  c.Tracing.Tracer(),
		Metrics: c.RelayMetrics,
		Logger:  logger,
	})
	return nil
}

func (c *Container) ensureAdmin(ctx context.Context) error {
	username := strings.TrimSpace(c.Config.Auth.BootstrapUsername)
	password := c.Config.Auth.BootstrapPassword
	if username == "" || password == "" {
		c.logger.Warn("No bootstrap admin password configured; skipping admin account setup")
		return nil
	}
	_, created, err := c.Auth.EnsureUser(ctx, username, password)
	if err != nil {
		return err
	}
	if created {
		c.logger.Info("Admin account %s created", username)
	}
	return nil
}

func (c *Container) seedCatalog(ctx context.Context) (int, error) {
	path := strings.TrimSpace(c.Config.Catalog.SeedFile)
	if path == "" {
		return 0, nil
	}
	inputs, err := catalogadapters.LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	created, err := c.Catalog.Seed(ctx, inputs)
	if created > 0 {
		c.logger.Info("Seeded %d catalog records from %s", created, path)
	}
	return created, err
}

// Shutdown flushes telemetry and closes the database pool.
func (c *Container) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if err := c.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	if err := c.RelayMetrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return errors.Join(errs...)
}

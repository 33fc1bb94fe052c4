package bootstrap

import (
	"context"
	"errors"
	"strings"

	"mlwio/internal/config"
	"mlwio/internal/shared/logging"
)

// SeedReport summarises a one-shot seed run.
type SeedReport struct {
	AdminCreated bool
	ItemsCreated int
}

// RunSeed creates the admin account and loads the seed file without
// starting the HTTP server. Unlike server startup, every failure is fatal.
func RunSeed(ctx context.Context, cfg *config.Config) (SeedReport, error) {
	var report SeedReport
	if cfg == nil {
		return report, errors.New("config is nil")
	}
	logger := logging.NewComponentLogger("Seed")

	c := &Container{Config: cfg, Degraded: NewDegradedComponents(), logger: logger}
	defer func() { _ = c.Shutdown(context.Background()) }()

	if err := RunStages([]BootstrapStage{
		{Name: "stores", Required: true, Init: func() error { return c.initStores(ctx) }},
	}, c.Degraded, logger); err != nil {
		return report, err
	}

	if password := cfg.Auth.BootstrapPassword; password != "" {
		_, created, err := c.Auth.EnsureUser(ctx, strings.TrimSpace(cfg.Auth.BootstrapUsername), password)
		if err != nil {
			return report, err
		}
		report.AdminCreated = created
	}

	created, err := c.seedCatalog(ctx)
	report.ItemsCreated = created
	return report, err
}

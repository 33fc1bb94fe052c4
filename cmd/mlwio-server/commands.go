package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mlwio/internal/config"
	"mlwio/internal/infra/crypto"
	"mlwio/internal/server/bootstrap"
	"mlwio/internal/shared/logging"
)

// version is set with -ldflags "-X main.version=...".
var version = ""

type cliFlags struct {
	v *viper.Viper
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &cliFlags{v: viper.New()}

	root := &cobra.Command{
		Use:           "mlwio-server",
		Short:         "MLWIO media catalog API and download relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a YAML config file (overrides MLWIO_CONFIG)")
	pf.String("port", "", "listen port (overrides config)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	_ = flags.v.BindPFlag("config", pf.Lookup("config"))
	_ = flags.v.BindPFlag("port", pf.Lookup("port"))
	_ = flags.v.BindPFlag("log_level", pf.Lookup("log-level"))

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Create the admin account and load the catalog seed file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSeed(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "hash-password [password]",
			Short: "Print the argon2id hash of a password (reads stdin when omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runHashPassword,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), appVersion())
			},
		},
	)
	return root
}

// loadConfig reads the runtime config and applies command-line overrides.
func (f *cliFlags) loadConfig() (*config.Config, error) {
	var opts []config.Option
	if path := strings.TrimSpace(f.v.GetString("config")); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if port := strings.TrimSpace(f.v.GetString("port")); port != "" {
		cfg.Port = port
	}
	if level := strings.TrimSpace(f.v.GetString("log_level")); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Configure(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	bootstrap.Version = appVersion()
	return cfg, nil
}

func runServe(cmd *cobra.Command, flags *cliFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting MLWIO API %s", appVersion())
	logger.Info("Environment: %s", cfg.Environment)
	logger.Info("Port: %s", cfg.Port)
	if cfg.UsesDatabase() {
		logger.Info("Database: %s", logging.Redact(cfg.Database.URL))
	}
	if cfg.Auth.BootstrapPassword != "" {
		logger.Info("Bootstrap admin: %s (password %s)", cfg.Auth.BootstrapUsername, logging.Redact(cfg.Auth.BootstrapPassword))
	}

	return bootstrap.RunServer(cmd.Context(), cfg)
}

func runSeed(cmd *cobra.Command, flags *cliFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if !cfg.UsesDatabase() {
		logging.NewComponentLogger("Seed").Warn("No database configured; seeding the in-memory store has no lasting effect")
	}
	report, err := bootstrap.RunSeed(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin created: %v\ncontent created: %d\n", report.AdminCreated, report.ItemsCreated)
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password is required")
	}
	hash, err := crypto.NewPasswordHasher(crypto.DefaultParams).Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func appVersion() string {
	if v := strings.TrimSpace(version); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return "dev-" + setting.Value
			}
		}
	}
	return "development"
}

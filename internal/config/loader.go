package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MLWIO"

// DefaultUserAgent mimics a desktop browser so file hosts serve the regular
// download flow instead of a bot challenge.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	configPath string
}

// WithEnv supplies a custom environment lookup for the unprefixed aliases
// (PORT, DATABASE_URL, ...). Prefixed MLWIO_* keys are read by viper.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithConfigPath forces the loader to read configuration from a specific file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// legacyAliases maps unprefixed variables used by hosting platforms onto
// config keys. They only apply when the prefixed variable is unset.
var legacyAliases = map[string][]string{
	"port":         {"PORT"},
	"environment":  {"NODE_ENV", "APP_ENV"},
	"database.url": {"DATABASE_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5000")
	v.SetDefault("environment", "development")
	v.SetDefault("static_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("database.url", "")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.cookie_name", "mlwio_session")
	v.SetDefault("auth.bootstrap_username", "mlwio")
	v.SetDefault("auth.bootstrap_password", "")

	v.SetDefault("cors.allowed_origins", "")

	v.SetDefault("relay.user_agent", DefaultUserAgent)
	v.SetDefault("relay.max_hops", 5)
	v.SetDefault("relay.max_interstitial_bytes", 1<<20)
	v.SetDefault("relay.resolve_timeout", "30s")
	v.SetDefault("relay.timeout", "0s")
	v.SetDefault("relay.allow_private_networks", false)
	v.SetDefault("relay.rate_limit_per_minute", 30)
	v.SetDefault("relay.rate_limit_burst", 10)

	v.SetDefault("catalog.seed_file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "otlp")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.zipkin_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Load builds the process configuration from defaults, an optional YAML file,
// MLWIO_* environment variables and finally the legacy unprefixed aliases.
func Load(opts ...Option) (*Config, error) {
	options := loadOptions{envLookup: DefaultEnvLookup}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.envLookup == nil {
		options.envLookup = DefaultEnvLookup
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := strings.TrimSpace(options.configPath)
	if configPath == "" {
		if fromEnv, ok := options.envLookup(envPrefix + "_CONFIG"); ok {
			configPath = strings.TrimSpace(fromEnv)
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	for key, aliases := range legacyAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if value, ok := options.envLookup(prefixed); ok && strings.TrimSpace(value) != "" {
			continue
		}
		for _, alias := range aliases {
			if value, ok := options.envLookup(alias); ok && strings.TrimSpace(value) != "" {
				v.Set(key, strings.TrimSpace(value))
				break
			}
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	sessionTTL, err := durationValue(v, "auth.session_ttl")
	if err != nil {
		return nil, err
	}
	connectTimeout, err := durationValue(v, "database.connect_timeout")
	if err != nil {
		return nil, err
	}
	resolveTimeout, err := durationValue(v, "relay.resolve_timeout")
	if err != nil {
		return nil, err
	}
	relayTimeout, err := durationValue(v, "relay.timeout")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        strings.TrimSpace(v.GetString("port")),
		Environment: strings.TrimSpace(v.GetString("environment")),
		StaticDir:   strings.TrimSpace(v.GetString("static_dir")),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Database: DatabaseConfig{
			URL:            strings.TrimSpace(v.GetString("database.url")),
			ConnectTimeout: connectTimeout,
			MaxConns:       v.GetInt32("database.max_conns"),
		},
		Auth: AuthConfig{
			SessionTTL:        sessionTTL,
			CookieName:        strings.TrimSpace(v.GetString("auth.cookie_name")),
			BootstrapUsername: strings.TrimSpace(v.GetString("auth.bootstrap_username")),
			BootstrapPassword: v.GetString("auth.bootstrap_password"),
		},
		CORS: CORSConfig{
			AllowedOrigins: stringList(v.Get("cors.allowed_origins")),
		},
		Relay: RelayConfig{
			UserAgent:            strings.TrimSpace(v.GetString("relay.user_agent")),
			MaxHops:              v.GetInt("relay.max_hops"),
			MaxInterstitialBytes: v.GetInt64("relay.max_interstitial_bytes"),
			ResolveTimeout:       resolveTimeout,
			Timeout:              relayTimeout,
			AllowPrivateNetworks: v.GetBool("relay.allow_private_networks"),
			RateLimitPerMinute:   v.GetInt("relay.rate_limit_per_minute"),
			RateLimitBurst:       v.GetInt("relay.rate_limit_burst"),
		},
		Catalog: CatalogConfig{
			SeedFile: strings.TrimSpace(v.GetString("catalog.seed_file")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    strings.TrimSpace(v.GetString("metrics.path")),
		},
		Tracing: TracingConfig{
			Enabled:        v.GetBool("tracing.enabled"),
			Exporter:       strings.ToLower(strings.TrimSpace(v.GetString("tracing.exporter"))),
			OTLPEndpoint:   strings.TrimSpace(v.GetString("tracing.otlp_endpoint")),
			ZipkinEndpoint: strings.TrimSpace(v.GetString("tracing.zipkin_endpoint")),
			SampleRate:     v.GetFloat64("tracing.sample_rate"),
		},
	}
	if cfg.Relay.UserAgent == "" {
		cfg.Relay.UserAgent = DefaultUserAgent
	}
	return cfg, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return parsed, nil
}

// stringList accepts either a YAML list or a delimited string.
func stringList(raw any) []string {
	switch value := raw.(type) {
	case nil:
		return nil
	case []string:
		return normalizeList(value)
	case []any:
		items := make([]string, 0, len(value))
		for _, item := range value {
			items = append(items, fmt.Sprint(item))
		}
		return normalizeList(items)
	case string:
		fields := strings.FieldsFunc(value, func(r rune) bool {
			switch r {
			case ',', ';', '\n', '\r', '\t', ' ':
				return true
			default:
				return false
			}
		})
		return normalizeList(fields)
	default:
		return normalizeList([]string{fmt.Sprint(value)})
	}
}

func normalizeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.Relay.MaxHops <= 0 || c.Relay.MaxHops > 20 {
		return fmt.Errorf("relay.max_hops must be between 1 and 20, got %d", c.Relay.MaxHops)
	}
	if c.Relay.MaxInterstitialBytes <= 0 {
		return fmt.Errorf("relay.max_interstitial_bytes must be positive")
	}
	if c.Relay.ResolveTimeout < 0 || c.Relay.Timeout < 0 {
		return fmt.Errorf("relay timeouts must not be negative")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "zipkin":
		default:
			return fmt.Errorf("unsupported tracing.exporter %q", c.Tracing.Exporter)
		}
	}
	return nil
}

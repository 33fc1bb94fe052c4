package config

import (
	"strings"
	"time"
)

// Config is the process-wide configuration. It is built once at startup by
// Load and passed by pointer into the components that need it; nothing
// mutates it afterwards.
type Config struct {
	Port        string
	Environment string
	StaticDir   string
	Log         LogConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	CORS        CORSConfig
	Relay       RelayConfig
	Catalog     CatalogConfig
	Metrics     MetricsConfig
	Tracing     TracingConfig
}

// LogConfig controls the zap-backed component loggers.
type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig selects Postgres-backed stores. An empty URL keeps every
// store in memory.
type DatabaseConfig struct {
	URL            string
	ConnectTimeout time.Duration
	MaxConns       int32
}

// AuthConfig captures session and bootstrap-account settings.
type AuthConfig struct {
	SessionTTL        time.Duration
	CookieName        string
	BootstrapUsername string
	BootstrapPassword string
}

// CORSConfig lists browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string
}

// RelayConfig tunes the download relay.
type RelayConfig struct {
	UserAgent            string
	MaxHops              int
	MaxInterstitialBytes int64
	ResolveTimeout       time.Duration
	Timeout              time.Duration
	AllowPrivateNetworks bool
	RateLimitPerMinute   int
	RateLimitBurst       int
}

// CatalogConfig points at an optional YAML seed file.
type CatalogConfig struct {
	SeedFile string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TracingConfig selects an optional span exporter. Exporter is "otlp" or
// "zipkin".
type TracingConfig struct {
	Enabled        bool
	Exporter       string
	OTLPEndpoint   string
	ZipkinEndpoint string
	SampleRate     float64
}

// IsProduction reports whether secure cookies and strict CORS apply.
func (c *Config) IsProduction() bool {
	if c == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// UsesDatabase reports whether Postgres stores should be built.
func (c *Config) UsesDatabase() bool {
	return c != nil && strings.TrimSpace(c.Database.URL) != ""
}

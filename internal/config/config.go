package config

import (
	"flag"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `envPrefix:"SERVER_"`

	// Upstream backend configuration
	Upstream UpstreamConfig `envPrefix:"UPSTREAM_"`

	// Storage configuration
	Storage StorageConfig `envPrefix:"STORAGE_"`

	// Logging configuration
	Logging LoggingConfig

	// Metrics configuration
	Metrics MetricsConfig

	// Tracing configuration
	Tracing TracingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	// gRPC server address
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	// HTTP server address
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Enable TLS
	TLSEnabled bool `env:"TLS_ENABLED" envDefault:"false"`

	// TLS certificate file
	TLSCertFile string `env:"TLS_CERT_FILE"`

	// TLS key file
	TLSKeyFile string `env:"TLS_KEY_FILE"`

	// Allowed WebSocket origins (empty allows all)
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// UpstreamConfig describes the backend owning the domain data
type UpstreamConfig struct {
	// Base URL of the REST API, e.g. http://localhost:8000
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	// Per-request timeout
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// Field holding the object identity
	IDField string `env:"ID_FIELD" envDefault:"_id"`

	// Query channel reconnect attempts before giving up
	WSMaxRetries uint `env:"WS_MAX_RETRIES" envDefault:"10"`

	// Fixed delay between reconnect attempts
	WSRetryInterval time.Duration `env:"WS_RETRY_INTERVAL" envDefault:"3s"`

	// Subscribe to ws-query channels of json_root models
	LiveUpdates bool `env:"LIVE_UPDATES" envDefault:"true"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	// Data directory path, holds the preference store and schema snapshot
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// Default page size of table views
	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"25"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Log format: "json", "text"
	Format string `env:"LOG_FORMAT" envDefault:"json"`

	// Log file path (empty for stdout)
	Output string `env:"LOG_OUTPUT" envDefault:""`

	// Enable log rotation
	Rotation bool `env:"LOG_ROTATION" envDefault:"true"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Enable Prometheus metrics
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Metrics server address
	Addr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint     string  `env:"TRACING_ENDPOINT" envDefault:""`
	ExporterType string  `env:"TRACING_EXPORTER" envDefault:"grpc"`
	Insecure     bool    `env:"TRACING_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"TRACING_SAMPLE_RATIO" envDefault:"1"`
}

// Load loads configuration from environment variables, then command line flags
func Load() (*Config, error) {
	return load(flag.CommandLine, nil)
}

func load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	fs.StringVar(&cfg.Server.GRPCAddr, "grpc-addr", cfg.Server.GRPCAddr, "gRPC server address")
	fs.StringVar(&cfg.Server.HTTPAddr, "http-addr", cfg.Server.HTTPAddr, "HTTP server address")
	fs.StringVar(&cfg.Upstream.BaseURL, "upstream", cfg.Upstream.BaseURL, "Upstream backend base URL")
	fs.StringVar(&cfg.Storage.DataDir, "data-dir", cfg.Storage.DataDir, "Data directory path")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (json, text)")
	fs.StringVar(&cfg.Metrics.Addr, "metrics-addr", cfg.Metrics.Addr, "Metrics server address")

	if args == nil {
		if !fs.Parsed() {
			flag.Parse()
		}
	} else if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Storage.DataDir = filepath.Clean(cfg.Storage.DataDir)
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return fmt.Errorf("grpc server address cannot be empty")
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("http server address cannot be empty")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Storage.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid upstream base url: %q", c.Upstream.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream base url must be http or https: %q", c.Upstream.BaseURL)
	}

	if c.Upstream.IDField == "" {
		return fmt.Errorf("upstream id field cannot be empty")
	}

	if c.Upstream.WSRetryInterval <= 0 {
		return fmt.Errorf("ws retry interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" {
			return fmt.Errorf("tls cert file is required when tls is enabled")
		}
		if c.Server.TLSKeyFile == "" {
			return fmt.Errorf("tls key file is required when tls is enabled")
		}
	}

	return nil
}

// WebSocketURL converts the upstream base URL to its ws/wss form
func (c UpstreamConfig) WebSocketURL() string {
	switch {
	case strings.HasPrefix(c.BaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://")
	case strings.HasPrefix(c.BaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.BaseURL, "http://")
	default:
		return c.BaseURL
	}
}

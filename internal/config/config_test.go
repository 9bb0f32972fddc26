package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(flag.NewFlagSet("test", flag.ContinueOnError), []string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, "_id", cfg.Upstream.IDField)
	assert.Equal(t, uint(10), cfg.Upstream.WSMaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Upstream.WSRetryInterval)
	assert.Equal(t, 25, cfg.Storage.DefaultPageSize)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_WS_MAX_RETRIES", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := load(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-http-addr", ":9999"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, uint(3), cfg.Upstream.WSMaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, "wss://api.example.com", cfg.Upstream.WebSocketURL())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := load(flag.NewFlagSet("test", flag.ContinueOnError), []string{})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty http addr", func(c *Config) { c.Server.HTTPAddr = "" }},
		{"bad upstream scheme", func(c *Config) { c.Upstream.BaseURL = "ftp://host" }},
		{"missing upstream host", func(c *Config) { c.Upstream.BaseURL = "http://" }},
		{"empty id field", func(c *Config) { c.Upstream.IDField = "" }},
		{"zero retry interval", func(c *Config) { c.Upstream.WSRetryInterval = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }},
		{"tls without cert", func(c *Config) { c.Server.TLSEnabled = true }},
		{"zero page size", func(c *Config) { c.Storage.DefaultPageSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// Package logger configures the process-wide zerolog logger. Components
// derive their own loggers with WithComponent and WithModel.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultService = "schemaui"

// Config holds logger configuration
type Config struct {
	// Level is debug, info, warn or error; anything else means info
	Level string
	// Format is json or text (console)
	Format string
	// Output is a file path, "stdout" or "stderr"; empty means stdout
	Output string

	Rotation   bool
	MaxSize    int
	MaxBackups int
	MaxAge     int

	// Service is stamped on every entry, defaults to "schemaui"
	Service string
	// Fields are stamped on every entry after Service
	Fields map[string]string
}

var (
	mu     sync.Mutex
	closer io.Closer
)

// Init replaces the global logger. A file opened by a previous call is
// closed.
func Init(cfg *Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w, c, err := openOutput(cfg)
	if err != nil {
		return err
	}
	if strings.EqualFold(cfg.Format, "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	service := cfg.Service
	if service == "" {
		service = defaultService
	}
	ctx := zerolog.New(w).With().Timestamp().Str("service", service)
	for k, v := range cfg.Fields {
		ctx = ctx.Str(k, v)
	}
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}

	mu.Lock()
	defer mu.Unlock()
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = ctx.Logger()
	if closer != nil {
		_ = closer.Close()
	}
	closer = c
	return nil
}

// openOutput resolves the destination; the closer is nil for std streams
func openOutput(cfg *Config) (io.Writer, io.Closer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if cfg.Rotation {
		lj := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		return lj, lj, nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

// Close closes the log file, if any. Later entries go to stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	log.Logger = log.Logger.Output(os.Stderr)
	return err
}

// Logger returns the global logger
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component name
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// WithModel returns a component logger scoped to a model
func WithModel(component, model string) zerolog.Logger {
	return log.Logger.With().
		Str("component", component).
		Str("model", model).
		Logger()
}

// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "chaosalign", "logs", "chaosalign.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// Console output goes to stderr so command output on stdout stays parseable.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg LogConfig, console io.Writer) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		return zerolog.Nop()
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

// TickIDKey is the context key for the tick identifier.
const TickIDKey ContextKey = "tick_id"

// WithTickID tags the context with a tick identifier.
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TickIDKey, id)
}

// TickID returns the tick identifier stored in ctx, or "".
func TickID(ctx context.Context) string {
	id, _ := ctx.Value(TickIDKey).(string)
	return id
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithEntity adds an entity (symbol or company) ID to the logger context.
func WithEntity(logger zerolog.Logger, entityID string) zerolog.Logger {
	return logger.With().Str("entity", entityID).Logger()
}

// WithPortfolio adds a portfolio ID to the logger context.
func WithPortfolio(logger zerolog.Logger, portfolioID string) zerolog.Logger {
	return logger.With().Str("portfolio", portfolioID).Logger()
}

// LogSignal logs an ensemble decision.
func LogSignal(logger zerolog.Logger, decision string, value, confidence float64, regime string) {
	logger.Debug().
		Str("event", "signal").
		Str("decision", decision).
		Float64("ensemble_value", value).
		Float64("confidence", confidence).
		Str("regime", regime).
		Msg("Ensemble signal")
}

// LogFallback logs a degraded result that was replaced by a neutral default.
func LogFallback(logger zerolog.Logger, entityID string, err error) {
	logger.Warn().
		Str("event", "fallback").
		Str("entity", entityID).
		Err(err).
		Msg("Using neutral fallback")
}

// LogDuration logs how long an operation took.
func LogDuration(logger zerolog.Logger, operation string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "operation").
		Str("operation", operation).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Operation failed")
	} else {
		event.Msg("Operation completed")
	}
}

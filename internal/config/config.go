// Package config provides configuration management for chaosalign.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"chaosalign/internal/engine"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/journal"
	"chaosalign/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	engine.Config `mapstructure:",squash"`

	Logging logging.LogConfig `mapstructure:"logging"`
	Journal journal.Config    `mapstructure:"journal"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	// TextfilePath, when set, receives the registry in Prometheus text format
	// after each command.
	TextfilePath string `mapstructure:"textfile_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Config:  engine.DefaultConfig(),
		Logging: logging.DefaultLogConfig(),
		Journal: journal.DefaultConfig(),
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/chaosalign"
	}
	return filepath.Join(home, ".config", "chaosalign")
}

// Load loads configuration from config.toml in configDir, layered over the
// defaults. If configDir is empty the default config directory is used.
// A missing file is replaced by a commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHAOSALIGN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHAOSALIGN_LOG_FILE"); v != "" {
		cfg.Logging.File = true
		cfg.Logging.FilePath = v
	}
	if v := os.Getenv("CHAOSALIGN_JOURNAL_PATH"); v != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = v
	}
	if v, err := strconv.ParseBool(os.Getenv("CHAOSALIGN_JOURNAL_ENABLED")); err == nil {
		cfg.Journal.Enabled = v
	}
	if v, err := strconv.Atoi(os.Getenv("CHAOSALIGN_WARMUP_STEPS")); err == nil {
		cfg.Ensemble.WarmupSteps = v
	}
	if v, err := strconv.ParseBool(os.Getenv("CHAOSALIGN_ADAPT_ON_SIGNAL")); err == nil {
		cfg.Ensemble.AdaptOnSignal = v
	}
	if v := os.Getenv("CHAOSALIGN_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.TextfilePath = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Ensemble.Validate(); err != nil {
		return err
	}
	if err := c.Alignment.Validate(); err != nil {
		return err
	}
	if err := c.Fusion.Validate(); err != nil {
		return err
	}
	if err := c.Impact.Validate(); err != nil {
		return err
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return apperrors.NewValidationError("journal.path", c.Journal.Path, "required when the journal is enabled", apperrors.ErrConfigInvalid)
	}
	if c.Logging.File && c.Logging.FilePath == "" {
		return apperrors.NewValidationError("logging.file_path", c.Logging.FilePath, "required when file logging is enabled", apperrors.ErrConfigInvalid)
	}
	return nil
}

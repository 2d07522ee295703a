package fusion

import (
	apperrors "chaosalign/internal/errors"
)

// Config holds metrics-fusion configuration.
type Config struct {
	// NormalizationReturn is the return that, at perfect alignment, scores 1.0.
	NormalizationReturn float64 `mapstructure:"normalization_return"`
	SynergyFactor       float64 `mapstructure:"synergy_factor"`
	SynergyThreshold    float64 `mapstructure:"synergy_threshold"`
	RiskFreeRate        float64 `mapstructure:"risk_free_rate"`
	DefaultPrice        float64 `mapstructure:"default_price"`
	FallbackAlignment   float64 `mapstructure:"fallback_alignment"`

	Benchmarks  []string `mapstructure:"benchmarks"`
	HistorySize int      `mapstructure:"history_size"`
	TrendWindow int      `mapstructure:"trend_window"`
	ReportDepth int      `mapstructure:"report_depth"`

	Risk   RiskThresholds   `mapstructure:"risk"`
	Regime RegimeThresholds `mapstructure:"regime"`
}

// RiskThresholds classify a portfolio's risk level.
type RiskThresholds struct {
	HighVolatility        float64 `mapstructure:"high_volatility"`
	HighDrawdown          float64 `mapstructure:"high_drawdown"`
	HighConcentration     float64 `mapstructure:"high_concentration"`
	ModerateVolatility    float64 `mapstructure:"moderate_volatility"`
	ModerateDrawdown      float64 `mapstructure:"moderate_drawdown"`
	ModerateConcentration float64 `mapstructure:"moderate_concentration"`
}

// RegimeThresholds classify mean quote volatility.
type RegimeThresholds struct {
	High              float64 `mapstructure:"high"`
	Moderate          float64 `mapstructure:"moderate"`
	Low               float64 `mapstructure:"low"`
	DefaultVolatility float64 `mapstructure:"default_volatility"`
}

// DefaultConfig returns the default fusion configuration.
func DefaultConfig() Config {
	return Config{
		NormalizationReturn: 0.1,
		SynergyFactor:       0.1,
		SynergyThreshold:    0.7,
		RiskFreeRate:        0.02,
		DefaultPrice:        100,
		FallbackAlignment:   0.5,
		Benchmarks:          []string{"SPY", "QQQ"},
		HistorySize:         500,
		TrendWindow:         10,
		ReportDepth:         30,
		Risk: RiskThresholds{
			HighVolatility:        0.05,
			HighDrawdown:          0.2,
			HighConcentration:     0.3,
			ModerateVolatility:    0.03,
			ModerateDrawdown:      0.1,
			ModerateConcentration: 0.2,
		},
		Regime: RegimeThresholds{
			High:              0.05,
			Moderate:          0.03,
			Low:               0.015,
			DefaultVolatility: 0.02,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.NormalizationReturn <= 0 {
		return apperrors.NewValidationError("fusion.normalization_return", c.NormalizationReturn, "must be positive", apperrors.ErrConfigInvalid)
	}
	if c.FallbackAlignment < 0 || c.FallbackAlignment > 1 {
		return apperrors.NewValidationError("fusion.fallback_alignment", c.FallbackAlignment, "must be within [0,1]", apperrors.ErrConfigInvalid)
	}
	if c.DefaultPrice <= 0 {
		return apperrors.NewValidationError("fusion.default_price", c.DefaultPrice, "must be positive", apperrors.ErrConfigInvalid)
	}
	if c.HistorySize < 1 {
		return apperrors.NewValidationError("fusion.history_size", c.HistorySize, "must be positive", apperrors.ErrConfigInvalid)
	}
	if c.TrendWindow < 1 {
		return apperrors.NewValidationError("fusion.trend_window", c.TrendWindow, "must be positive", apperrors.ErrConfigInvalid)
	}
	if c.ReportDepth < 1 {
		return apperrors.NewValidationError("fusion.report_depth", c.ReportDepth, "must be positive", apperrors.ErrConfigInvalid)
	}
	return nil
}

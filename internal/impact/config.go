package impact

import (
	apperrors "chaosalign/internal/errors"
)

// ScenarioSpec is a named multiple of the scaled impact.
type ScenarioSpec struct {
	Name        string  `mapstructure:"name"`
	Multiplier  float64 `mapstructure:"multiplier"`
	Probability float64 `mapstructure:"probability"`
	Description string  `mapstructure:"description"`
}

// Config holds impact estimator configuration.
type Config struct {
	DefaultVolume     float64 `mapstructure:"default_volume"`
	DefaultVolatility float64 `mapstructure:"default_volatility"`
	DefaultPrice      float64 `mapstructure:"default_price"`
	DefaultVolumeCV   float64 `mapstructure:"default_volume_cv"`

	PermanentCoefficient float64 `mapstructure:"permanent_coefficient"`
	TemporaryCoefficient float64 `mapstructure:"temporary_coefficient"`
	// TemporaryExponentFactor scales the fractal exponent for temporary impact.
	TemporaryExponentFactor float64 `mapstructure:"temporary_exponent_factor"`
	LiquidityFloor          float64 `mapstructure:"liquidity_floor"`
	LiquidityScale          float64 `mapstructure:"liquidity_scale"`

	SpreadDollarVolume float64 `mapstructure:"spread_dollar_volume"`
	TightSpreadBps     float64 `mapstructure:"tight_spread_bps"`
	WideSpreadBps      float64 `mapstructure:"wide_spread_bps"`

	MinFractalBars          int     `mapstructure:"min_fractal_bars"`
	DefaultFractalDimension float64 `mapstructure:"default_fractal_dimension"`

	Scenarios []ScenarioSpec `mapstructure:"scenarios"`
}

// DefaultScenarios returns the standard counterfactual scenarios.
func DefaultScenarios() []ScenarioSpec {
	return []ScenarioSpec{
		{Name: "optimal_execution", Multiplier: 0.7, Probability: 0.10, Description: "Perfect VWAP execution with minimal slippage"},
		{Name: "normal_conditions", Multiplier: 1.0, Probability: 0.60, Description: "Typical market conditions with standard impact"},
		{Name: "adverse_conditions", Multiplier: 1.5, Probability: 0.20, Description: "High volatility or low liquidity conditions"},
		{Name: "black_swan", Multiplier: 3.0, Probability: 0.05, Description: "Extreme market dislocation or flash crash conditions"},
		{Name: "chaos_optimized", Multiplier: 0.8, Probability: 0.80, Description: "Execution timed by attractor signals"},
	}
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		DefaultVolume:           1_000_000,
		DefaultVolatility:       0.02,
		DefaultPrice:            100,
		DefaultVolumeCV:         0.5,
		PermanentCoefficient:    0.5,
		TemporaryCoefficient:    0.3,
		TemporaryExponentFactor: 0.8,
		LiquidityFloor:          0.1,
		LiquidityScale:          0.001,
		SpreadDollarVolume:      10_000_000,
		TightSpreadBps:          1,
		WideSpreadBps:           10,
		MinFractalBars:          100,
		DefaultFractalDimension: 1.5,
		Scenarios:               DefaultScenarios(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DefaultVolume <= 0 {
		return apperrors.NewValidationError("impact.default_volume", c.DefaultVolume, "must be positive", apperrors.ErrConfigInvalid)
	}
	if c.DefaultPrice <= 0 {
		return apperrors.NewValidationError("impact.default_price", c.DefaultPrice, "must be positive", apperrors.ErrConfigInvalid)
	}
	if c.DefaultFractalDimension < 1 || c.DefaultFractalDimension > 2 {
		return apperrors.NewValidationError("impact.default_fractal_dimension", c.DefaultFractalDimension, "must be within [1,2]", apperrors.ErrConfigInvalid)
	}
	for _, s := range c.Scenarios {
		if s.Name == "" || s.Multiplier < 0 || s.Probability < 0 || s.Probability > 1 {
			return apperrors.NewValidationError("impact.scenarios", s.Name, "needs a name, non-negative multiplier and probability in [0,1]", apperrors.ErrConfigInvalid)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# chaosalign configuration
# Values shown are the built-in defaults. Remove a key to keep its default.

# Goroutines used for batch scoring and impact estimation (0 = one per CPU)
workers = 0

[ensemble]
# Share of the consistency-implied weight blended in per adaptation
adaptation_rate = 0.1
# Recent signals used for consistency scoring
consistency_window = 10
# Per-attractor weight bounds
min_weight = 0.1
max_weight = 0.6
# Confidence at or above this is reported as actionable
confidence_threshold = 0.6
# Signals retained in memory
history_size = 500
# Integration steps run before the first signal
warmup_steps = 1000
# Adapt weights after every signal
adapt_on_signal = false

[ensemble.weights]
lorenz = 0.40
chen = 0.35
rossler = 0.25

[alignment]
# Starting score for every criterion
baseline = 0.5
default_industry_average = 100.0
harmful_industry_penalty = 0.2
penalize_harmful_industries = true
# Entities whose scores are cached
cache_size = 1000

[alignment.weights]
non_harm = 0.25
truthfulness = 0.25
fair_exchange = 0.20
restraint = 0.15
sharing = 0.15

[fusion]
# Return mapped to a normalized financial score of 1.0
normalization_return = 0.1
synergy_factor = 0.1
synergy_threshold = 0.7
risk_free_rate = 0.02
default_price = 100.0
# Alignment assumed for entities that cannot be scored
fallback_alignment = 0.5
benchmarks = ["SPY", "QQQ"]
history_size = 500
trend_window = 10
report_depth = 30

[fusion.risk]
high_volatility = 0.05
high_drawdown = 0.2
high_concentration = 0.3
moderate_volatility = 0.03
moderate_drawdown = 0.1
moderate_concentration = 0.2

[fusion.regime]
high = 0.05
moderate = 0.03
low = 0.015
default_volatility = 0.02

[impact]
default_volume = 1000000.0
default_volatility = 0.02
default_price = 100.0
default_volume_cv = 0.5
permanent_coefficient = 0.5
temporary_coefficient = 0.3
temporary_exponent_factor = 0.8
liquidity_floor = 0.1
liquidity_scale = 0.001
spread_dollar_volume = 10000000.0
tight_spread_bps = 1.0
wide_spread_bps = 10.0
min_fractal_bars = 100
default_fractal_dimension = 1.5

[logging]
# debug, info, warn, error
level = "info"
console = true
# Rotating file log
file = false
max_size = 50
max_backups = 5
max_age = 30

[journal]
# Record command results in a SQLite journal
enabled = false

[metrics]
# Write Prometheus text-format metrics here after each command
textfile_path = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

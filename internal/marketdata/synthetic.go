package marketdata

import (
	"math"
	"math/rand"
	"time"

	"chaosalign/internal/models"
)

// SyntheticConfig shapes a generated bar series.
type SyntheticConfig struct {
	Bars        int
	StartPrice  float64
	DailyVol    float64
	Drift       float64
	BaseVolume  float64
	VolumeNoise float64
	Start       time.Time
	Seed        int64
}

// DefaultSyntheticConfig returns one trading year of moderately volatile bars.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Bars:        252,
		StartPrice:  100,
		DailyVol:    0.015,
		Drift:       0.0003,
		BaseVolume:  1_000_000,
		VolumeNoise: 0.3,
		Start:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Seed:        1,
	}
}

// Synthetic generates a geometric random walk of daily bars. The same config
// always yields the same series.
func Synthetic(cfg SyntheticConfig) []models.Bar {
	if cfg.Bars <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	bars := make([]models.Bar, cfg.Bars)
	price := cfg.StartPrice
	for i := range bars {
		open := price
		ret := cfg.Drift + cfg.DailyVol*rng.NormFloat64()
		price = open * math.Exp(ret)
		spread := math.Abs(cfg.DailyVol * rng.NormFloat64() * open)
		volume := cfg.BaseVolume * math.Max(0.1, 1+cfg.VolumeNoise*rng.NormFloat64())

		bars[i] = models.Bar{
			Timestamp: cfg.Start.AddDate(0, 0, i),
			Open:      open,
			High:      math.Max(open, price) + spread/2,
			Low:       math.Max(0, math.Min(open, price)-spread/2),
			Close:     price,
			Volume:    math.Round(volume),
		}
	}
	return bars
}

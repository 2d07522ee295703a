// Package ensemble combines the Lorenz, Chen and Rössler attractors into one
// weighted, confidence-scaled trading decision with adaptive weights.
package ensemble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chaosalign/internal/analysis"
	"chaosalign/internal/attractor"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/logging"
	"chaosalign/internal/models"
	"chaosalign/internal/ringbuf"
)

// Config holds ensemble configuration.
type Config struct {
	Weights             Weights `mapstructure:"weights"`
	AdaptationRate      float64 `mapstructure:"adaptation_rate"`
	ConsistencyWindow   int     `mapstructure:"consistency_window"`
	MinWeight           float64 `mapstructure:"min_weight"`
	MaxWeight           float64 `mapstructure:"max_weight"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	HistorySize         int     `mapstructure:"history_size"`
	WarmupSteps         int     `mapstructure:"warmup_steps"`
	AdaptOnSignal       bool    `mapstructure:"adapt_on_signal"`
}

// DefaultConfig returns the default ensemble configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		AdaptationRate:      0.1,
		ConsistencyWindow:   10,
		MinWeight:           0.1,
		MaxWeight:           0.6,
		ConfidenceThreshold: 0.6,
		HistorySize:         500,
		WarmupSteps:         1000,
		AdaptOnSignal:       false,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	for kind := range c.Weights {
		if _, err := attractor.New(kind); err != nil {
			return apperrors.NewValidationError("ensemble.weights", kind, "unknown attractor", apperrors.ErrConfigInvalid)
		}
	}
	if err := c.Weights.Validate(c.MinWeight, c.MaxWeight); err != nil {
		return err
	}
	if c.AdaptationRate < 0 || c.AdaptationRate > 1 {
		return apperrors.NewValidationError("ensemble.adaptation_rate", c.AdaptationRate, "must be within [0,1]", apperrors.ErrConfigInvalid)
	}
	if c.HistorySize < 2 {
		return apperrors.NewValidationError("ensemble.history_size", c.HistorySize, "must be at least 2", apperrors.ErrConfigInvalid)
	}
	if c.WarmupSteps < 0 {
		return apperrors.NewValidationError("ensemble.warmup_steps", c.WarmupSteps, "must be non-negative", apperrors.ErrConfigInvalid)
	}
	return nil
}

func (c Config) adaptParams() AdaptParams {
	return AdaptParams{
		Rate:      c.AdaptationRate,
		Window:    c.ConsistencyWindow,
		MinWeight: c.MinWeight,
		MaxWeight: c.MaxWeight,
	}
}

// Signal is one ensemble decision.
type Signal struct {
	Decision      models.Decision                     `json:"decision" msgpack:"decision"`
	Confidence    float64                             `json:"confidence" msgpack:"confidence"`
	Actionable    bool                                `json:"actionable" msgpack:"actionable"`
	EnsembleValue float64                             `json:"ensemble_value" msgpack:"ensemble_value"`
	MarketRegime  models.MarketRegime                 `json:"market_regime" msgpack:"market_regime"`
	Signals       map[attractor.Kind]attractor.Signal `json:"signals" msgpack:"signals"`
	WeightsUsed   Weights                             `json:"weights_used" msgpack:"weights_used"`
	Timestamp     time.Time                           `json:"timestamp" msgpack:"timestamp"`
}

// Ensemble owns one attractor per weighted kind. It is safe for concurrent use.
type Ensemble struct {
	mu         sync.Mutex
	cfg        Config
	attractors map[attractor.Kind]*attractor.System
	weights    Weights
	history    *ringbuf.Ring[Signal]
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates an ensemble and initialises its attractors.
func New(cfg Config, logger zerolog.Logger) (*Ensemble, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Ensemble{
		cfg:        cfg,
		attractors: make(map[attractor.Kind]*attractor.System, len(cfg.Weights)),
		weights:    Normalize(cfg.Weights, cfg.MinWeight, cfg.MaxWeight),
		history:    ringbuf.New[Signal](cfg.HistorySize),
		logger:     logging.WithComponent(logger, "ensemble"),
		now:        time.Now,
	}
	for kind := range cfg.Weights {
		sys, err := attractor.New(kind)
		if err != nil {
			return nil, err
		}
		e.attractors[kind] = sys
	}
	if err := e.initialize(); err != nil {
		return nil, err
	}
	return e, nil
}

// initialPreset is the preset each attractor starts from.
func initialPreset(kind attractor.Kind) attractor.Preset {
	switch kind {
	case attractor.KindLorenz:
		return attractor.PresetClassic
	case attractor.KindChen:
		return attractor.PresetHighEnergy
	default:
		return attractor.PresetChaotic
	}
}

// Initialize resets every attractor to its starting preset and evolves it
// through the warm-up steps. Weights and history are kept.
func (e *Ensemble) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialize()
}

func (e *Ensemble) initialize() error {
	for kind, sys := range e.attractors {
		if err := sys.SetInitialConditions(initialPreset(kind)); err != nil {
			return err
		}
		for i := 0; i < e.cfg.WarmupSteps; i++ {
			sys.Evolve()
		}
	}
	return nil
}

// signalConfidence scores one attractor signal: chaotic +0.3, chaos
// strength above 0.5 +0.3, fractal dimension within (1.5, 2.5) +0.4.
func signalConfidence(s attractor.Signal) float64 {
	var c float64
	if s.IsChaotic {
		c += 0.3
	}
	if s.ChaosStrength > 0.5 {
		c += 0.3
	}
	if s.FractalDimension > 1.5 && s.FractalDimension < 2.5 {
		c += 0.4
	}
	return analysis.Clamp01(c)
}

// regimeFromChaos maps mean chaos strength onto a market regime.
func regimeFromChaos(chaos float64) models.MarketRegime {
	switch {
	case chaos > 0.8:
		return models.RegimeHighVolatility
	case chaos > 0.5:
		return models.RegimeModerateVolatility
	case chaos > 0.2:
		return models.RegimeLowVolatility
	default:
		return models.RegimeStable
	}
}

// Combine folds attractor signals into an ensemble signal using weights.
func Combine(signals map[attractor.Kind]attractor.Signal, weights Weights, threshold float64) Signal {
	var weighted, totalWeight, totalConfidence, totalChaos float64
	for kind, sig := range signals {
		w := weights[kind]
		conf := signalConfidence(sig)
		weighted += float64(sig.Decision.Value()) * w * conf
		totalWeight += w
		totalConfidence += conf
		totalChaos += sig.ChaosStrength
	}

	out := Signal{
		Decision:     models.DecisionHold,
		MarketRegime: models.RegimeUnknown,
		Signals:      signals,
		WeightsUsed:  weights.Clone(),
	}
	if totalWeight > 0 {
		out.EnsembleValue = weighted / totalWeight
	}
	if n := float64(len(signals)); n > 0 {
		out.Confidence = totalConfidence / n
		out.MarketRegime = regimeFromChaos(totalChaos / n)
	}
	out.Decision = models.DecisionFromValue(out.EnsembleValue)
	out.Actionable = out.Confidence >= threshold
	return out
}

// GenerateSignal collects a signal from every attractor and combines them.
// When AdaptOnSignal is set the weights are adapted from the prior history
// before the new signal is recorded.
func (e *Ensemble) GenerateSignal(ctx context.Context) Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	signals := make(map[attractor.Kind]attractor.Signal, len(e.attractors))
	for kind, sys := range e.attractors {
		signals[kind] = sys.GenerateSignal()
	}

	out := Combine(signals, e.weights, e.cfg.ConfidenceThreshold)
	out.Timestamp = e.now()

	if e.cfg.AdaptOnSignal {
		e.weights = AdaptWeights(e.weights, e.history.Slice(), e.cfg.adaptParams())
	}
	e.history.Push(out)

	logger := e.logger
	if id := logging.TickID(ctx); id != "" {
		logger = logger.With().Str("tick_id", id).Logger()
	}
	logging.LogSignal(logger, string(out.Decision), out.EnsembleValue, out.Confidence, string(out.MarketRegime))
	return out
}

// AdaptWeights applies AdaptWeights to the ensemble's own history and
// returns the new weights.
func (e *Ensemble) AdaptWeights() Weights {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = AdaptWeights(e.weights, e.history.Slice(), e.cfg.adaptParams())
	return e.weights.Clone()
}

// Weights returns a copy of the current weights.
func (e *Ensemble) Weights() Weights {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weights.Clone()
}

// History returns up to limit recent signals, oldest first. A limit of 0
// or less returns the full history.
func (e *Ensemble) History(limit int) []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		return e.history.Slice()
	}
	return e.history.Last(limit)
}

// AttractorProperties returns the diagnostics of every attractor.
func (e *Ensemble) AttractorProperties() map[attractor.Kind]attractor.Properties {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[attractor.Kind]attractor.Properties, len(e.attractors))
	for kind, sys := range e.attractors {
		out[kind] = sys.Properties()
	}
	return out
}

// Reset clears every attractor and the signal history. Weights are kept.
func (e *Ensemble) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sys := range e.attractors {
		sys.Reset()
	}
	e.history.Reset()
}

// VolatilityProfile selects a parameter regime for Tune.
type VolatilityProfile string

const (
	VolatilityHigh   VolatilityProfile = "high"
	VolatilityNormal VolatilityProfile = "normal"
	VolatilityLow    VolatilityProfile = "low"
)

var profiles = map[VolatilityProfile]map[attractor.Kind]attractor.Parameters{
	VolatilityHigh: {
		attractor.KindLorenz:  {"sigma": 12, "rho": 32, "beta": 8.0 / 3.0},
		attractor.KindChen:    {"a": 6, "b": -12, "c": -0.4},
		attractor.KindRossler: {"a": 0.25, "b": 0.25, "c": 6.0},
	},
	VolatilityNormal: {
		attractor.KindLorenz:  {"sigma": 10, "rho": 28, "beta": 8.0 / 3.0},
		attractor.KindChen:    {"a": 5, "b": -10, "c": -0.38},
		attractor.KindRossler: {"a": 0.2, "b": 0.2, "c": 5.7},
	},
	VolatilityLow: {
		attractor.KindLorenz:  {"sigma": 8, "rho": 24, "beta": 8.0 / 3.0},
		attractor.KindChen:    {"a": 4, "b": -8, "c": -0.35},
		attractor.KindRossler: {"a": 0.15, "b": 0.15, "c": 5.0},
	},
}

// Tune switches every attractor to the parameter regime of profile, then
// resets and re-initialises the ensemble.
func (e *Ensemble) Tune(profile VolatilityProfile) error {
	params, ok := profiles[profile]
	if !ok {
		return apperrors.NewValidationError("volatility", profile, "expected high, normal or low", apperrors.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for kind, sys := range e.attractors {
		if err := sys.SetParameters(params[kind]); err != nil {
			return fmt.Errorf("tune %s: %w", kind, err)
		}
		sys.Reset()
	}
	e.history.Reset()
	e.logger.Info().Str("profile", string(profile)).Msg("Ensemble tuned")
	return e.initialize()
}

// Summary describes recent ensemble behaviour.
type Summary struct {
	TotalSignals         int                     `json:"total_signals"`
	DecisionDistribution map[models.Decision]int `json:"decision_distribution"`
	AverageConfidence    float64                 `json:"average_confidence"`
	CurrentWeights       Weights                 `json:"current_weights"`
}

// PerformanceSummary reports on the last 100 signals. It returns false when
// no signal has been generated yet.
func (e *Ensemble) PerformanceSummary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	recent := e.history.Last(100)
	if len(recent) == 0 {
		return Summary{}, false
	}

	s := Summary{
		TotalSignals:         len(recent),
		DecisionDistribution: make(map[models.Decision]int),
		CurrentWeights:       e.weights.Clone(),
	}
	confidences := make([]float64, len(recent))
	for i, sig := range recent {
		s.DecisionDistribution[sig.Decision]++
		confidences[i] = sig.Confidence
	}
	s.AverageConfidence = analysis.Mean(confidences)
	return s, true
}

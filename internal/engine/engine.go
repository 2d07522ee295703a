// Package engine owns one instance of every decision component and runs them
// together as a single serialised tick.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chaosalign/internal/alignment"
	"chaosalign/internal/ensemble"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/fusion"
	"chaosalign/internal/impact"
	"chaosalign/internal/logging"
	"chaosalign/internal/metrics"
	"chaosalign/internal/models"
	"chaosalign/internal/performance"
)

// Config bundles the component configurations.
type Config struct {
	Ensemble  ensemble.Config  `mapstructure:"ensemble"`
	Alignment alignment.Config `mapstructure:"alignment"`
	Fusion    fusion.Config    `mapstructure:"fusion"`
	Impact    impact.Config    `mapstructure:"impact"`

	// Workers bounds batch scoring and impact estimation. Zero uses every CPU.
	Workers int `mapstructure:"workers"`
}

// DefaultConfig returns the default configuration of every component.
func DefaultConfig() Config {
	return Config{
		Ensemble:  ensemble.DefaultConfig(),
		Alignment: alignment.DefaultConfig(),
		Fusion:    fusion.DefaultConfig(),
		Impact:    impact.DefaultConfig(),
	}
}

// ImpactRequest asks for one impact estimate during a tick.
type ImpactRequest struct {
	EntityID   string
	BaseSize   float64
	TargetSize float64
	History    []models.Bar
	Quote      *models.Quote
}

// TickInput is everything one tick consumes. An empty PortfolioID skips
// portfolio tracking.
type TickInput struct {
	PortfolioID string
	Positions   []models.Position
	Snapshot    models.MarketSnapshot
	Impacts     []ImpactRequest
}

// TickResult is everything one tick produces.
type TickResult struct {
	TickID      string                      `json:"tick_id"`
	Signal      ensemble.Signal             `json:"signal"`
	Performance *fusion.PerformanceSnapshot `json:"performance,omitempty"`
	Impacts     []impact.ImpactModel        `json:"impacts,omitempty"`
	Duration    time.Duration               `json:"duration"`
}

// Engine is the per-process facade over the decision components.
type Engine struct {
	mu        sync.Mutex
	ensemble  *ensemble.Ensemble
	scorer    *alignment.Scorer
	tracker   *fusion.Tracker
	estimator *impact.Estimator
	recorder  *metrics.Recorder
	pool      *performance.Pool
	logger    zerolog.Logger
}

// New builds every component. attrs supplies entity attributes for
// portfolio alignment and may be nil. recorder may be nil.
func New(cfg Config, attrs alignment.AttributeProvider, recorder *metrics.Recorder, logger zerolog.Logger) (*Engine, error) {
	ens, err := ensemble.New(cfg.Ensemble, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "ensemble")
	}
	scorer, err := alignment.NewScorer(cfg.Alignment, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "alignment")
	}
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	tracker, err := fusion.NewTracker(cfg.Fusion, &observedScorer{scorer: scorer, recorder: recorder}, attrs, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "fusion")
	}
	estimator, err := impact.NewEstimator(cfg.Impact, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "impact")
	}

	return &Engine{
		ensemble:  ens,
		scorer:    scorer,
		tracker:   tracker,
		estimator: estimator,
		recorder:  recorder,
		pool:      performance.NewPool(cfg.Workers),
		logger:    logging.WithComponent(logger, "engine"),
	}, nil
}

// Tick generates an ensemble signal, tracks the portfolio and runs the
// requested impact estimates. It fails only on contract violations in the
// input, which are checked before any component state changes.
func (e *Engine) Tick(ctx context.Context, in TickInput) (TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	tickID := uuid.NewString()
	ctx = logging.WithTickID(ctx, tickID)

	result, err := e.tick(ctx, in)
	result.TickID = tickID
	result.Duration = time.Since(start)

	e.recorder.ObserveTick(result.Duration, err)
	logging.LogDuration(e.logger.With().Str("tick_id", tickID).Logger(), "tick", result.Duration, err)
	if err != nil {
		return TickResult{}, err
	}
	return result, nil
}

func validateTick(in TickInput) error {
	if in.PortfolioID != "" {
		if err := fusion.ValidatePositions(in.Positions); err != nil {
			return apperrors.Wrapf(err, "track %s", in.PortfolioID)
		}
	}
	for _, req := range in.Impacts {
		if err := impact.ValidateSizes(req.BaseSize, req.TargetSize); err != nil {
			return apperrors.Wrapf(err, "impact %s", req.EntityID)
		}
	}
	return nil
}

func (e *Engine) tick(ctx context.Context, in TickInput) (TickResult, error) {
	var result TickResult
	if err := validateTick(in); err != nil {
		return result, err
	}

	result.Signal = e.ensemble.GenerateSignal(ctx)
	e.recorder.ObserveSignal(string(result.Signal.Decision), string(result.Signal.MarketRegime), result.Signal.Confidence)
	e.recorder.ObserveWeights(weightLabels(e.ensemble.Weights()))

	if in.PortfolioID != "" {
		snap, err := e.tracker.Track(ctx, in.PortfolioID, in.Positions, in.Snapshot)
		if err != nil {
			return result, apperrors.Wrapf(err, "track %s", in.PortfolioID)
		}
		e.recorder.ObservePortfolio(in.PortfolioID, snap.Financial.TotalReturn, snap.Fused.Normalized)
		result.Performance = &snap
	}

	estimates, err := performance.Map(ctx, e.pool, in.Impacts, func(_ context.Context, req ImpactRequest) (impact.ImpactModel, error) {
		m, err := e.estimator.Model(req.EntityID, req.BaseSize, req.TargetSize, req.History, req.Quote)
		if err != nil {
			return m, apperrors.Wrapf(err, "impact %s", req.EntityID)
		}
		e.recorder.ObserveImpact(req.EntityID, m.Scaled.Total)
		return m, nil
	})
	if err != nil {
		return result, err
	}
	if len(estimates) > 0 {
		result.Impacts = estimates
	}
	return result, nil
}

// Signal generates one ensemble signal outside a full tick.
func (e *Engine) Signal(ctx context.Context) ensemble.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.ensemble.GenerateSignal(ctx)
	e.recorder.ObserveSignal(string(s.Decision), string(s.MarketRegime), s.Confidence)
	return s
}

// Score rates one entity's alignment.
func (e *Engine) Score(entityID string, attrs alignment.Attributes) alignment.Score {
	s := e.scorer.Score(entityID, attrs)
	e.recorder.ObserveScore(s.Fallback)
	return s
}

// ScoreAll rates every entity in ids concurrently, looking attributes up in
// attrs. Results are in ids order. An unknown entity fails the batch with
// ErrDataNotFound.
func (e *Engine) ScoreAll(ctx context.Context, ids []string, attrs alignment.AttributeProvider) ([]alignment.Score, error) {
	return performance.Map(ctx, e.pool, ids, func(_ context.Context, id string) (alignment.Score, error) {
		a, ok := attrs.Attributes(id)
		if !ok {
			return alignment.Score{}, apperrors.Wrapf(apperrors.ErrDataNotFound, "entity %s", id)
		}
		return e.Score(id, a), nil
	})
}

// AdaptWeights adapts the ensemble weights from its history.
func (e *Engine) AdaptWeights() ensemble.Weights {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.ensemble.AdaptWeights()
	e.recorder.ObserveWeights(weightLabels(w))
	return w
}

// Tune switches the ensemble to a volatility profile and re-initialises it.
func (e *Engine) Tune(profile ensemble.VolatilityProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensemble.Tune(profile)
}

// Ensemble returns the engine's ensemble.
func (e *Engine) Ensemble() *ensemble.Ensemble { return e.ensemble }

// Scorer returns the engine's alignment scorer.
func (e *Engine) Scorer() *alignment.Scorer { return e.scorer }

// Tracker returns the engine's performance tracker.
func (e *Engine) Tracker() *fusion.Tracker { return e.tracker }

// Estimator returns the engine's impact estimator.
func (e *Engine) Estimator() *impact.Estimator { return e.estimator }

// Recorder returns the engine's metrics recorder.
func (e *Engine) Recorder() *metrics.Recorder { return e.recorder }

// Reset clears the ensemble, tracker and impact histories.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensemble.Reset()
	e.tracker.Clear()
	e.estimator.Clear()
}

func weightLabels(w ensemble.Weights) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[string(k)] = v
	}
	return out
}

// observedScorer counts every score the tracker requests.
type observedScorer struct {
	scorer   *alignment.Scorer
	recorder *metrics.Recorder
}

func (o *observedScorer) Score(entityID string, attrs alignment.Attributes) alignment.Score {
	s := o.scorer.Score(entityID, attrs)
	o.recorder.ObserveScore(s.Fallback)
	return s
}

// Package impact estimates the market impact of a trade at a base size and
// extrapolates it to a larger target size with fractal scaling.
package impact

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chaosalign/internal/analysis"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/logging"
	"chaosalign/internal/models"
)

// Nonlinear effect breakpoints on the scale ratio.
const (
	firstBreakpoint  = 10.0
	secondBreakpoint = 50.0
)

// BaseImpact is the estimated impact at the base size.
type BaseImpact struct {
	ParticipationRate   float64 `json:"participation_rate" msgpack:"participation_rate"`
	PriceImpact         float64 `json:"price_impact" msgpack:"price_impact"`
	PermanentImpact     float64 `json:"permanent_impact" msgpack:"permanent_impact"`
	TemporaryImpact     float64 `json:"temporary_impact" msgpack:"temporary_impact"`
	SpreadCost          float64 `json:"spread_cost" msgpack:"spread_cost"`
	Price               float64 `json:"price" msgpack:"price"`
	AvgVolume           float64 `json:"avg_volume" msgpack:"avg_volume"`
	Volatility          float64 `json:"volatility" msgpack:"volatility"`
	VolumeCV            float64 `json:"volume_cv" msgpack:"volume_cv"`
	LiquidityAdjustment float64 `json:"liquidity_adjustment" msgpack:"liquidity_adjustment"`
	TotalSlippage       float64 `json:"total_slippage" msgpack:"total_slippage"`
}

// ScaledImpact is the impact extrapolated to the target size.
type ScaledImpact struct {
	ScaleRatio        float64 `json:"scale_ratio" msgpack:"scale_ratio"`
	ParticipationRate float64 `json:"participation_rate" msgpack:"participation_rate"`
	PermanentImpact   float64 `json:"permanent_impact" msgpack:"permanent_impact"`
	TemporaryImpact   float64 `json:"temporary_impact" msgpack:"temporary_impact"`
	NonlinearEffects  float64 `json:"nonlinear_effects" msgpack:"nonlinear_effects"`
	Total             float64 `json:"total" msgpack:"total"`
	Dimension         float64 `json:"dimension" msgpack:"dimension"`
	Exponent          float64 `json:"exponent" msgpack:"exponent"`
	Efficiency        float64 `json:"efficiency" msgpack:"efficiency"`
}

// Scenario is one counterfactual outcome.
type Scenario struct {
	Name        string  `json:"name" msgpack:"name"`
	Probability float64 `json:"probability" msgpack:"probability"`
	Impact      float64 `json:"impact" msgpack:"impact"`
	Description string  `json:"description" msgpack:"description"`
}

// ImpactModel is the full impact estimate for one entity.
type ImpactModel struct {
	ID               string              `json:"id" msgpack:"id"`
	EntityID         string              `json:"entity_id" msgpack:"entity_id"`
	Timestamp        time.Time           `json:"timestamp" msgpack:"timestamp"`
	BaseSize         float64             `json:"base_size" msgpack:"base_size"`
	TargetSize       float64             `json:"target_size" msgpack:"target_size"`
	Base             BaseImpact          `json:"base" msgpack:"base"`
	Scaled           ScaledImpact        `json:"scaled" msgpack:"scaled"`
	ScaleRatio       float64             `json:"scale_ratio" msgpack:"scale_ratio"`
	FractalDimension float64             `json:"fractal_dimension" msgpack:"fractal_dimension"`
	Scenarios        []Scenario          `json:"scenarios" msgpack:"scenarios"`
	MarketRegime     models.MarketRegime `json:"market_regime" msgpack:"market_regime"`
	Confidence       float64             `json:"confidence" msgpack:"confidence"`
	UsedDefaults     bool                `json:"used_defaults" msgpack:"used_defaults"`
}

// Estimator builds impact models and caches the latest one per entity.
type Estimator struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	models map[string]ImpactModel
}

// NewEstimator creates an estimator.
func NewEstimator(cfg Config, logger zerolog.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "impact"),
		now:    time.Now,
		models: make(map[string]ImpactModel),
	}, nil
}

// Model estimates the impact of trading baseSize and extrapolates it to
// targetSize. history is the entity's daily bars, oldest first; quote may be
// nil. Only non-positive sizes are rejected.
func (e *Estimator) Model(entityID string, baseSize, targetSize float64, history []models.Bar, quote *models.Quote) (ImpactModel, error) {
	if err := ValidateSizes(baseSize, targetSize); err != nil {
		return ImpactModel{}, err
	}

	base, usedDefaults := e.baseImpact(baseSize, history, quote)
	dimension := e.fractalDimension(history)
	scaled := e.scale(base, baseSize, targetSize, dimension)

	m := ImpactModel{
		ID:               uuid.NewString(),
		EntityID:         entityID,
		Timestamp:        e.now(),
		BaseSize:         baseSize,
		TargetSize:       targetSize,
		Base:             base,
		Scaled:           scaled,
		ScaleRatio:       scaled.ScaleRatio,
		FractalDimension: dimension,
		Scenarios:        e.scenarios(scaled.Total),
		MarketRegime:     regime(base.Volatility, base.VolumeCV),
		Confidence:       confidence(len(history), base.Volatility, scaled.Total, usedDefaults),
		UsedDefaults:     usedDefaults,
	}

	e.mu.Lock()
	e.models[entityID] = m
	e.mu.Unlock()

	logger := logging.WithEntity(e.logger, entityID)
	logger.Debug().
		Float64("scale_ratio", m.ScaleRatio).
		Float64("dimension", dimension).
		Float64("total_impact", scaled.Total).
		Float64("confidence", m.Confidence).
		Bool("used_defaults", usedDefaults).
		Msg("Impact modelled")

	return m, nil
}

// ValidateSizes checks that both trade sizes are positive and finite.
func ValidateSizes(baseSize, targetSize float64) error {
	if baseSize <= 0 || !analysis.IsFinite(baseSize) {
		return apperrors.NewValidationError("base_size", baseSize, "must be positive", apperrors.ErrInvalidSize)
	}
	if targetSize <= 0 || !analysis.IsFinite(targetSize) {
		return apperrors.NewValidationError("target_size", targetSize, "must be positive", apperrors.ErrInvalidSize)
	}
	return nil
}

// Get returns the cached model of an entity.
func (e *Estimator) Get(entityID string) (ImpactModel, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.models[entityID]
	return m, ok
}

// All returns every cached model ordered by entity ID.
func (e *Estimator) All() []ImpactModel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ImpactModel, 0, len(e.models))
	for _, m := range e.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Clear drops every cached model.
func (e *Estimator) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.models = make(map[string]ImpactModel)
}

func (e *Estimator) baseImpact(size float64, history []models.Bar, quote *models.Quote) (BaseImpact, bool) {
	var usedDefaults bool

	volumes := models.Volumes(history)
	closes := models.Closes(history)

	avgVolume := analysis.Mean(volumes)
	if len(history) == 0 || avgVolume <= 0 {
		avgVolume = e.cfg.DefaultVolume
		usedDefaults = true
	}
	if len(closes) < 2 {
		usedDefaults = true
	}
	volatility := analysis.AnnualizedVolatility(closes, e.cfg.DefaultVolatility)
	volumeCV := analysis.CoefficientOfVariation(volumes, e.cfg.DefaultVolumeCV)

	var price float64
	switch {
	case quote != nil && quote.LastPrice > 0:
		price = quote.LastPrice
	case len(history) > 0 && history[len(history)-1].Close > 0:
		price = history[len(history)-1].Close
	default:
		price = e.cfg.DefaultPrice
		usedDefaults = true
	}

	participation := size / (price * avgVolume)
	permanent := e.cfg.PermanentCoefficient * volatility * math.Sqrt(participation)
	temporary := e.cfg.TemporaryCoefficient * volatility * participation

	liquidityFactor := math.Max(e.cfg.LiquidityFloor, 1-volumeCV)
	liquidity := participation * (1 - liquidityFactor) * e.cfg.LiquidityScale

	spreadBps := e.cfg.WideSpreadBps
	if price*avgVolume > e.cfg.SpreadDollarVolume {
		spreadBps = e.cfg.TightSpreadBps
	}

	return BaseImpact{
		ParticipationRate:   participation,
		PriceImpact:         permanent + temporary,
		PermanentImpact:     permanent,
		TemporaryImpact:     temporary,
		SpreadCost:          size * spreadBps / 10_000,
		Price:               price,
		AvgVolume:           avgVolume,
		Volatility:          volatility,
		VolumeCV:            volumeCV,
		LiquidityAdjustment: liquidity,
		TotalSlippage:       permanent + temporary + liquidity,
	}, usedDefaults
}

// fractalDimension is the box-counting dimension of the close series, or the
// configured default when the history is too short.
func (e *Estimator) fractalDimension(history []models.Bar) float64 {
	if len(history) < e.cfg.MinFractalBars {
		return e.cfg.DefaultFractalDimension
	}
	return analysis.SeriesDimension(models.Closes(history), analysis.DefaultBoxScales)
}

func (e *Estimator) scale(base BaseImpact, baseSize, targetSize, dimension float64) ScaledImpact {
	ratio := targetSize / baseSize
	exponent := dimension - 1
	permanent := base.PermanentImpact * math.Pow(ratio, exponent)
	temporary := base.TemporaryImpact * math.Pow(ratio, exponent*e.cfg.TemporaryExponentFactor)
	nonlinear := NonlinearEffects(ratio)

	return ScaledImpact{
		ScaleRatio:        ratio,
		ParticipationRate: base.ParticipationRate * ratio,
		PermanentImpact:   permanent,
		TemporaryImpact:   temporary,
		NonlinearEffects:  nonlinear,
		Total:             permanent + temporary + nonlinear,
		Dimension:         dimension,
		Exponent:          exponent,
		Efficiency:        math.Min(1, math.Pow(ratio, 2-dimension)/ratio),
	}
}

// NonlinearEffects is the extra impact of trading far above the base size.
func NonlinearEffects(ratio float64) float64 {
	var v float64
	if ratio > firstBreakpoint {
		v += 0.001*math.Log(ratio) + 0.0005*math.Sqrt(ratio-firstBreakpoint)
	}
	if ratio > secondBreakpoint {
		v += 0.002*math.Log(ratio/secondBreakpoint) + 0.001*math.Sqrt(ratio-secondBreakpoint)
	}
	return v
}

func (e *Estimator) scenarios(total float64) []Scenario {
	out := make([]Scenario, len(e.cfg.Scenarios))
	for i, s := range e.cfg.Scenarios {
		out[i] = Scenario{
			Name:        s.Name,
			Probability: s.Probability,
			Impact:      total * s.Multiplier,
			Description: s.Description,
		}
	}
	return out
}

func regime(volatility, volumeCV float64) models.MarketRegime {
	switch {
	case volatility > 0.05 && volumeCV > 0.8:
		return models.RegimeHighVolatility
	case volatility > 0.03 && volumeCV > 0.6:
		return models.RegimeModerateVolatility
	case volatility < 0.02 && volumeCV < 0.4:
		return models.RegimeLowVolatility
	default:
		return models.RegimeNormal
	}
}

func confidence(bars int, volatility, total float64, usedDefaults bool) float64 {
	c := 0.5
	switch {
	case bars > 252:
		c += 0.2
	case bars > 100:
		c += 0.1
	}
	switch {
	case volatility < 0.02:
		c += 0.1
	case volatility > 0.05:
		c -= 0.1
	}
	switch {
	case total < 0.1:
		c += 0.1
	case total > 0.5:
		c -= 0.2
	}
	if usedDefaults {
		c -= 0.2
	}
	return analysis.Clamp(c, 0.1, 1)
}

// Package fusion values portfolios, weighs them by alignment and fuses the
// two into a single performance figure with risk and trend analytics.
package fusion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chaosalign/internal/alignment"
	"chaosalign/internal/logging"
	"chaosalign/internal/models"
	"chaosalign/internal/ringbuf"
)

// PerformanceSnapshot is the fused view of a portfolio at one instant.
type PerformanceSnapshot struct {
	ID           string                         `json:"id" msgpack:"id"`
	PortfolioID  string                         `json:"portfolio_id" msgpack:"portfolio_id"`
	Timestamp    time.Time                      `json:"timestamp" msgpack:"timestamp"`
	Financial    FinancialMetrics               `json:"financial" msgpack:"financial"`
	Alignment    AlignmentMetrics               `json:"alignment" msgpack:"alignment"`
	Fused        FusedScore                     `json:"fused" msgpack:"fused"`
	Benchmarks   map[string]BenchmarkComparison `json:"benchmarks" msgpack:"benchmarks"`
	Risk         RiskMetrics                    `json:"risk" msgpack:"risk"`
	MarketRegime models.MarketRegime            `json:"market_regime" msgpack:"market_regime"`
	Positions    []models.Position              `json:"positions" msgpack:"positions"`
}

// Tracker produces performance snapshots and keeps their history.
type Tracker struct {
	cfg    Config
	scorer EntityScorer
	attrs  alignment.AttributeProvider
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	snapshots *ringbuf.Ring[PerformanceSnapshot]
	fused     *ringbuf.Ring[FusedScore]
	values    map[string]*ringbuf.Ring[float64]
	latest    map[string]PerformanceSnapshot
}

// NewTracker creates a tracker. attrs may be nil, in which case every
// position is scored from empty attributes.
func NewTracker(cfg Config, scorer EntityScorer, attrs alignment.AttributeProvider, logger zerolog.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		cfg:       cfg,
		scorer:    scorer,
		attrs:     attrs,
		logger:    logging.WithComponent(logger, "fusion"),
		now:       time.Now,
		snapshots: ringbuf.New[PerformanceSnapshot](cfg.HistorySize),
		fused:     ringbuf.New[FusedScore](cfg.HistorySize),
		values:    make(map[string]*ringbuf.Ring[float64]),
		latest:    make(map[string]PerformanceSnapshot),
	}, nil
}

// Track values a portfolio against a market snapshot and records the result.
// Only malformed positions produce an error; scorer fallbacks never abort.
func (t *Tracker) Track(ctx context.Context, portfolioID string, positions []models.Position, snap models.MarketSnapshot) (PerformanceSnapshot, error) {
	if err := ValidatePositions(positions); err != nil {
		return PerformanceSnapshot{}, err
	}
	start := t.now()

	fin := t.financialMetrics(positions, snap)
	align := t.alignmentMetrics(positions)

	t.mu.Lock()
	defer t.mu.Unlock()

	values, ok := t.values[portfolioID]
	if !ok {
		values = ringbuf.New[float64](t.cfg.HistorySize)
		t.values[portfolioID] = values
	}
	values.Push(fin.TotalValue)
	fin.MaxDrawdown = MaxDrawdown(values.Slice())

	fused := Fuse(fin.TotalReturn, align.Score, t.cfg)
	held := make([]models.Position, len(positions))
	copy(held, positions)

	snapshot := PerformanceSnapshot{
		ID:           uuid.NewString(),
		PortfolioID:  portfolioID,
		Timestamp:    start,
		Financial:    fin,
		Alignment:    align,
		Fused:        fused,
		Benchmarks:   t.benchmarks(fin.TotalReturn, snap),
		Risk:         t.riskMetrics(fin, positions),
		MarketRegime: t.marketRegime(snap),
		Positions:    held,
	}
	t.snapshots.Push(snapshot)
	t.fused.Push(fused)
	t.latest[portfolioID] = snapshot

	logger := logging.WithPortfolio(t.logger, portfolioID)
	if id := logging.TickID(ctx); id != "" {
		logger = logger.With().Str("tick_id", id).Logger()
	}
	logger.Debug().
		Float64("return", fin.TotalReturn).
		Float64("alignment", align.Score).
		Float64("fused", fused.Normalized).
		Str("interpretation", string(fused.Interpretation)).
		Str("risk", string(snapshot.Risk.Level)).
		Msg("Portfolio tracked")

	return snapshot, nil
}

// Latest returns the most recent snapshot of a portfolio.
func (t *Tracker) Latest(portfolioID string) (PerformanceSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.latest[portfolioID]
	return s, ok
}

// History returns up to limit recent snapshots, oldest first. limit <= 0
// returns all.
func (t *Tracker) History(limit int) []PerformanceSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit <= 0 {
		return t.snapshots.Slice()
	}
	return t.snapshots.Last(limit)
}

// CumulativeFusedScore is the mean normalized fused score over the history.
func (t *Tracker) CumulativeFusedScore() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	scores := t.fused.Slice()
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s.Normalized
	}
	return sum / float64(len(scores))
}

// Clear drops all history.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots.Reset()
	t.fused.Reset()
	t.values = make(map[string]*ringbuf.Ring[float64])
	t.latest = make(map[string]PerformanceSnapshot)
	t.logger.Info().Msg("Performance history cleared")
}

package fusion

import (
	"context"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaosalign/internal/alignment"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/models"
)

// fixedScorer returns a preset overall score per symbol and a fallback for
// anything else.
type fixedScorer map[string]float64

func (f fixedScorer) Score(entityID string, _ alignment.Attributes) alignment.Score {
	v, ok := f[entityID]
	criteria := make(map[alignment.Criterion]float64, len(alignment.AllCriteria))
	for _, c := range alignment.AllCriteria {
		criteria[c] = v
	}
	if !ok {
		return alignment.Score{EntityID: entityID, Overall: 0.5, Fallback: true, Criteria: criteria}
	}
	return alignment.Score{EntityID: entityID, Overall: v, Level: alignment.LevelFor(v), Criteria: criteria}
}

func newTestTracker(t *testing.T, scorer EntityScorer) *Tracker {
	t.Helper()
	tr, err := NewTracker(DefaultConfig(), scorer, nil, zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func TestFuse_Scenario4(t *testing.T) {
	f := Fuse(0.10, 1.0, DefaultConfig())
	assert.Equal(t, 1.0, f.Normalized)
	assert.Equal(t, InterpretGood, f.Interpretation)
	assert.InDelta(t, 0.1, f.Raw, 1e-15)
	assert.InDelta(t, 0.1*math.Sqrt(0.1), f.Components.SynergyBonus, 1e-12)
}

func TestFuse_NoSynergyBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	assert.Zero(t, Fuse(0.1, 0.7, cfg).Components.SynergyBonus)
	assert.Zero(t, Fuse(-0.1, 0.9, cfg).Components.SynergyBonus)
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		score float64
		want  Interpretation
	}{
		{2.5, InterpretExceptional},
		{2.0, InterpretExceptional},
		{1.5, InterpretStrong},
		{1.0, InterpretGood},
		{0.5, InterpretModerate},
		{0.1, InterpretWeak},
		{0, InterpretNeutral},
		{-0.1, InterpretNegative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interpret(tt.score), "score %v", tt.score)
	}
}

func TestTrack_Scenario4(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{"AAPL": 1.0})
	snap, err := tr.Track(context.Background(), "p1",
		[]models.Position{{Symbol: "AAPL", Weight: 1, Quantity: 10, AvgPrice: 100}},
		models.MarketSnapshot{"AAPL": {Symbol: "AAPL", LastPrice: 110}},
	)
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.InDelta(t, 0.1, snap.Financial.TotalReturn, 1e-12)
	assert.InDelta(t, 1100, snap.Financial.TotalValue, 1e-9)
	assert.InDelta(t, 100, snap.Financial.TotalPnL, 1e-9)
	assert.Equal(t, 1.0, snap.Alignment.Score)
	assert.Equal(t, alignment.LevelTranscendent, snap.Alignment.Level)
	assert.InDelta(t, 1.0, snap.Fused.Normalized, 1e-12)
	assert.Equal(t, InterpretGood, snap.Fused.Interpretation)
}

func TestTrack_PriceFallbacks(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{})
	snap, err := tr.Track(context.Background(), "p",
		[]models.Position{
			{Symbol: "A", Weight: 0.5, Value: 1000, AvgPrice: 50},
			{Symbol: "B", Weight: 0.5, Quantity: 1, AvgPrice: 100},
			{Symbol: "MISSING", Weight: 0.2, Quantity: 1, AvgPrice: 10},
		},
		models.MarketSnapshot{
			"A": {Close: 55},
			"B": {},
		},
	)
	require.NoError(t, err)
	require.Len(t, snap.Financial.Positions, 2)

	a := snap.Financial.Positions[0]
	assert.Equal(t, 55.0, a.CurrentPrice)
	assert.InDelta(t, 20, a.Quantity, 1e-12)
	assert.InDelta(t, 0.1, a.Return, 1e-12)

	b := snap.Financial.Positions[1]
	assert.Equal(t, 100.0, b.CurrentPrice)
	assert.Zero(t, b.Return)

	assert.InDelta(t, 0.05, snap.Financial.TotalReturn, 1e-12)
}

func TestTrack_FallbackAlignment(t *testing.T) {
	scorer, err := alignment.NewScorer(alignment.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	tr := newTestTracker(t, scorer)

	snap, err := tr.Track(context.Background(), "p",
		[]models.Position{{Symbol: "X", Weight: 1, Quantity: 1, AvgPrice: 10}},
		models.MarketSnapshot{"X": {LastPrice: 10}},
	)
	require.NoError(t, err)
	assert.Equal(t, 0.5, snap.Alignment.Score)
	assert.True(t, snap.Alignment.Positions[0].Fallback)
	for _, c := range alignment.AllCriteria {
		assert.Equal(t, 0.5, snap.Alignment.Criteria[c])
	}
}

func TestTrack_EmptyPortfolio(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{})
	snap, err := tr.Track(context.Background(), "p", nil, models.MarketSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, snap.Alignment.Score)
	assert.Zero(t, snap.Fused.Normalized)
	assert.Equal(t, InterpretNeutral, snap.Fused.Interpretation)
	assert.Equal(t, models.RegimeUnknown, snap.MarketRegime)
	assert.Zero(t, snap.Risk.Diversification)
	assert.Equal(t, RiskLow, snap.Risk.Level)
}

func TestTrack_InvalidPositions(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{})
	_, err := tr.Track(context.Background(), "p",
		[]models.Position{{Symbol: "X", Weight: -0.1, Quantity: 1, AvgPrice: 10}}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)

	_, err = tr.Track(context.Background(), "p",
		[]models.Position{{Symbol: "X", Weight: 0.1}}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)

	assert.Empty(t, tr.History(0))
}

func TestTrack_Benchmarks(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{"X": 0.8})
	snap, err := tr.Track(context.Background(), "p",
		[]models.Position{{Symbol: "X", Weight: 1, Quantity: 1, AvgPrice: 100}},
		models.MarketSnapshot{
			"X":   {LastPrice: 120},
			"SPY": {History: []models.Bar{{Close: 100}, {Close: 105}, {Close: 110}}},
			"QQQ": {Return: 0},
		},
	)
	require.NoError(t, err)
	require.Len(t, snap.Benchmarks, 2)

	spy := snap.Benchmarks["SPY"]
	assert.InDelta(t, 0.1, spy.Return, 1e-12)
	assert.InDelta(t, 0.1, spy.Outperformance, 1e-12)
	assert.InDelta(t, 1.0, spy.OutperformancePct, 1e-9)

	qqq := snap.Benchmarks["QQQ"]
	assert.InDelta(t, 0.2, qqq.Outperformance, 1e-12)
	assert.Zero(t, qqq.OutperformancePct)
}

func TestTrack_RiskAndSharpe(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{"A": 0.9, "B": 0.9})
	snap, err := tr.Track(context.Background(), "p",
		[]models.Position{
			{Symbol: "A", Weight: 0.5, Quantity: 1, AvgPrice: 100},
			{Symbol: "B", Weight: 0.5, Quantity: 1, AvgPrice: 100},
		},
		models.MarketSnapshot{
			"A": {LastPrice: 110, Return: 0.1, Volatility: 0.01},
			"B": {LastPrice: 130, Return: 0.3, Volatility: 0.01},
		},
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, snap.Financial.Volatility, 1e-12)
	assert.InDelta(t, 1.8, snap.Financial.SharpeRatio, 1e-9)
	assert.InDelta(t, math.Sqrt2, snap.Risk.Diversification, 1e-12)
	assert.Equal(t, 0.5, snap.Risk.Concentration)
	assert.Equal(t, RiskHigh, snap.Risk.Level)
	assert.Equal(t, models.RegimeLowVolatility, snap.MarketRegime)
}

func TestMarketRegime(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{})
	tests := []struct {
		vol  float64
		want models.MarketRegime
	}{
		{0.06, models.RegimeHighVolatility},
		{0.04, models.RegimeModerateVolatility},
		{0.02, models.RegimeNormal},
		{0.01, models.RegimeLowVolatility},
		{0, models.RegimeNormal},
	}
	for _, tt := range tests {
		got := tr.marketRegime(models.MarketSnapshot{"X": {Volatility: tt.vol}})
		assert.Equal(t, tt.want, got, "vol %v", tt.vol)
	}
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.25, MaxDrawdown([]float64{100, 120, 90, 110}), 1e-12)
	assert.Zero(t, MaxDrawdown([]float64{1, 2, 3}))
	assert.Zero(t, MaxDrawdown(nil))
}

func TestTrack_DrawdownAcrossTicks(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{"X": 0.9})
	pos := []models.Position{{Symbol: "X", Weight: 1, Quantity: 1, AvgPrice: 100}}
	var last PerformanceSnapshot
	for _, price := range []float64{100, 120, 90} {
		var err error
		last, err = tr.Track(context.Background(), "p", pos, models.MarketSnapshot{"X": {LastPrice: price}})
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.25, last.Financial.MaxDrawdown, 1e-12)
	assert.Equal(t, RiskHigh, last.Risk.Level)
}

func TestTrendsAndReport(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{"X": 0.5})
	pos := []models.Position{{Symbol: "X", Weight: 1, Quantity: 1, AvgPrice: 100}}

	assert.Equal(t, TrendInsufficientData, tr.TrendAnalysis().ReturnTrend)
	_, err := tr.Report("p")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)

	for i := 0; i < 25; i++ {
		price := 90 + float64(i)
		_, err := tr.Track(context.Background(), "p", pos, models.MarketSnapshot{"X": {LastPrice: price}})
		require.NoError(t, err)
	}

	trend := tr.TrendAnalysis()
	assert.Equal(t, TrendImproving, trend.ReturnTrend)
	assert.Equal(t, 25, trend.Samples)
	assert.GreaterOrEqual(t, trend.ConsistencyScore, 0.0)
	assert.LessOrEqual(t, trend.ConsistencyScore, 1.0)

	ft := tr.FusedTrend()
	assert.Equal(t, TrendImproving, ft.Trend)
	assert.InDelta(t, 0.14*0.5/0.1, ft.Peak, 1e-9)

	report, err := tr.Report("p")
	require.NoError(t, err)
	assert.Equal(t, 25, report.Summary.Snapshots)
	assert.InDelta(t, 0.14, report.Summary.Return, 1e-12)

	types := map[string]bool{}
	for _, r := range report.Recommendations {
		types[r.Type] = true
	}
	assert.True(t, types[RecommendEthicalReview])
	assert.False(t, types[RecommendRiskManagement])
	assert.False(t, types[RecommendRebalance])

	assert.Greater(t, tr.CumulativeFusedScore(), 0.0)

	tr.Clear()
	assert.Empty(t, tr.History(0))
	assert.Zero(t, tr.CumulativeFusedScore())
	_, ok := tr.Latest("p")
	assert.False(t, ok)
}

func TestReport_NegativeReturnRecommendations(t *testing.T) {
	tr := newTestTracker(t, fixedScorer{"X": 0.9})
	_, err := tr.Track(context.Background(), "p",
		[]models.Position{{Symbol: "X", Weight: 1, Quantity: 1, AvgPrice: 100}},
		models.MarketSnapshot{"X": {LastPrice: 80}})
	require.NoError(t, err)

	report, err := tr.Report("p")
	require.NoError(t, err)
	types := map[string]bool{}
	for _, r := range report.Recommendations {
		types[r.Type] = true
	}
	assert.True(t, types[RecommendRebalance])
	assert.True(t, types[RecommendRiskManagement])
	assert.False(t, types[RecommendEthicalReview])
	assert.Equal(t, TrendInsufficientData, report.Trends.ReturnTrend)
}

func TestHistoryCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistorySize = 3
	tr, err := NewTracker(cfg, fixedScorer{}, nil, zerolog.Nop())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := tr.Track(context.Background(), "p", nil, nil)
		require.NoError(t, err)
	}
	assert.Len(t, tr.History(0), 3)
	assert.Len(t, tr.History(2), 2)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.NormalizationReturn = 0
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrConfigInvalid)
	_, err := NewTracker(cfg, fixedScorer{}, nil, zerolog.Nop())
	assert.Error(t, err)
}

// Property: the normalized fused score is return × alignment over the
// normalization return and its label follows the score.
func TestProperty_FusedScoreIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)
	cfg := DefaultConfig()

	properties.Property("fused identity", prop.ForAll(
		func(ret, align float64) bool {
			f := Fuse(ret, align, cfg)
			want := ret * align / cfg.NormalizationReturn
			return math.Abs(f.Normalized-want) < 1e-12 &&
				f.Interpretation == Interpret(f.Normalized) &&
				f.Components.SynergyBonus >= 0
		},
		gen.Float64Range(-1, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

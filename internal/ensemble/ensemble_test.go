package ensemble

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaosalign/internal/attractor"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WarmupSteps = 100
	return cfg
}

func historyOf(decisions map[attractor.Kind][]models.Decision) []Signal {
	var n int
	for _, d := range decisions {
		n = len(d)
	}
	out := make([]Signal, n)
	for i := range out {
		out[i].Signals = make(map[attractor.Kind]attractor.Signal)
		for kind, d := range decisions {
			out[i].Signals[kind] = attractor.Signal{Attractor: kind, Decision: d[i]}
		}
	}
	return out
}

func repeat(d models.Decision, n int) []models.Decision {
	out := make([]models.Decision, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func alternate(a, b models.Decision, n int) []models.Decision {
	out := make([]models.Decision, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func TestConsistency(t *testing.T) {
	assert.Equal(t, 0.5, Consistency(nil))
	assert.Equal(t, 0.5, Consistency([]models.Decision{models.DecisionBuy}))
	assert.InDelta(t, 0.7, Consistency(repeat(models.DecisionBuy, 3)), 1e-12)
	assert.InDelta(t, 0.1, Consistency([]models.Decision{models.DecisionBuy, models.DecisionSell, models.DecisionBuy}), 1e-12)
	// BUY -> STRONG_SELL is neither identical nor a mirror pair
	assert.InDelta(t, 0.5, Consistency([]models.Decision{models.DecisionBuy, models.DecisionStrongSell}), 1e-12)
	assert.Equal(t, 1.0, Consistency(repeat(models.DecisionHold, 10)))
	assert.Equal(t, 0.0, Consistency(alternate(models.DecisionBuy, models.DecisionSell, 10)))
}

func TestAdaptWeights_NoOpWithShortHistory(t *testing.T) {
	old := DefaultWeights()
	history := historyOf(map[attractor.Kind][]models.Decision{
		attractor.KindLorenz: {models.DecisionBuy},
	})
	assert.Equal(t, old, AdaptWeights(old, history, DefaultAdaptParams()))
	assert.Equal(t, old, AdaptWeights(old, nil, DefaultAdaptParams()))
}

func TestAdaptWeights_RewardsConsistency(t *testing.T) {
	history := historyOf(map[attractor.Kind][]models.Decision{
		attractor.KindLorenz:  repeat(models.DecisionBuy, 12),
		attractor.KindChen:    alternate(models.DecisionBuy, models.DecisionSell, 12),
		attractor.KindRossler: repeat(models.DecisionHold, 12),
	})

	w := AdaptWeights(DefaultWeights(), history, DefaultAdaptParams())

	// lorenz 0.45, chen 0.30, rossler 0.30 before renormalising by 1.05
	assert.InDelta(t, 0.45/1.05, w[attractor.KindLorenz], 1e-12)
	assert.InDelta(t, 0.30/1.05, w[attractor.KindChen], 1e-12)
	assert.InDelta(t, 0.30/1.05, w[attractor.KindRossler], 1e-12)
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
}

// Scenario: after adaptation on a history of at least two signals every
// weight lies in [0.1, 0.6] and the weights sum to 1.
func TestAdaptWeights_StaysWithinBounds(t *testing.T) {
	history := historyOf(map[attractor.Kind][]models.Decision{
		attractor.KindLorenz:  repeat(models.DecisionStrongBuy, 10),
		attractor.KindChen:    alternate(models.DecisionStrongBuy, models.DecisionStrongSell, 10),
		attractor.KindRossler: alternate(models.DecisionBuy, models.DecisionSell, 10),
	})

	w := DefaultWeights()
	for i := 0; i < 50; i++ {
		w = AdaptWeights(w, history, DefaultAdaptParams())
		for kind, v := range w {
			assert.GreaterOrEqual(t, v, 0.1-1e-12, "%s round %d", kind, i)
			assert.LessOrEqual(t, v, 0.6+1e-12, "%s round %d", kind, i)
		}
		assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	}
	assert.InDelta(t, 0.6, w[attractor.KindLorenz], 1e-9)
}

func TestNormalize(t *testing.T) {
	w := Normalize(Weights{"a": 0.9, "b": 0.05, "c": 0.05}, 0.1, 0.6)
	assert.InDelta(t, 0.6, w["a"], 1e-9)
	assert.InDelta(t, 0.2, w["b"], 1e-9)
	assert.InDelta(t, 0.2, w["c"], 1e-9)

	// proportional rescale when it already fits
	w = Normalize(Weights{"a": 0.3, "b": 0.3, "c": 0.4}, 0.1, 0.6)
	assert.InDelta(t, 0.3, w["a"], 1e-12)
	assert.InDelta(t, 0.4, w["c"], 1e-12)

	assert.Empty(t, Normalize(Weights{}, 0.1, 0.6))
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate(0.1, 0.6))
	assert.ErrorIs(t, DefaultWeights().Validate(0.4, 0.6), apperrors.ErrConfigInvalid)
	assert.ErrorIs(t, DefaultWeights().Validate(0.1, 0.3), apperrors.ErrConfigInvalid)
	assert.ErrorIs(t, Weights{attractor.KindLorenz: -1}.Validate(0, 1), apperrors.ErrConfigInvalid)
	assert.ErrorIs(t, Weights{}.Validate(0, 1), apperrors.ErrConfigInvalid)
}

func confident(kind attractor.Kind, d models.Decision) attractor.Signal {
	return attractor.Signal{Attractor: kind, Decision: d, IsChaotic: true, ChaosStrength: 1, FractalDimension: 1.8}
}

func TestCombine(t *testing.T) {
	signals := map[attractor.Kind]attractor.Signal{
		attractor.KindLorenz:  confident(attractor.KindLorenz, models.DecisionBuy),
		attractor.KindChen:    confident(attractor.KindChen, models.DecisionBuy),
		attractor.KindRossler: confident(attractor.KindRossler, models.DecisionBuy),
	}
	out := Combine(signals, DefaultWeights(), 0.6)
	assert.InDelta(t, 1.0, out.EnsembleValue, 1e-12)
	assert.Equal(t, models.DecisionBuy, out.Decision)
	assert.Equal(t, 1.0, out.Confidence)
	assert.True(t, out.Actionable)
	assert.Equal(t, models.RegimeHighVolatility, out.MarketRegime)

	for kind := range signals {
		signals[kind] = confident(kind, models.DecisionStrongSell)
	}
	out = Combine(signals, DefaultWeights(), 0.6)
	assert.Equal(t, models.DecisionStrongSell, out.Decision)
}

func TestCombine_LowConfidenceHolds(t *testing.T) {
	signals := map[attractor.Kind]attractor.Signal{
		attractor.KindLorenz: {Decision: models.DecisionStrongBuy, FractalDimension: 1.2},
	}
	out := Combine(signals, DefaultWeights(), 0.6)
	assert.Equal(t, 0.0, out.EnsembleValue)
	assert.Equal(t, models.DecisionHold, out.Decision)
	assert.False(t, out.Actionable)
	assert.Equal(t, models.RegimeStable, out.MarketRegime)

	empty := Combine(nil, DefaultWeights(), 0.6)
	assert.Equal(t, models.DecisionHold, empty.Decision)
	assert.Equal(t, models.RegimeUnknown, empty.MarketRegime)
}

func TestSignalConfidence(t *testing.T) {
	assert.Equal(t, 0.0, signalConfidence(attractor.Signal{FractalDimension: 1.0}))
	assert.InDelta(t, 0.3, signalConfidence(attractor.Signal{IsChaotic: true, ChaosStrength: 0.2, FractalDimension: 1.0}), 1e-12)
	assert.InDelta(t, 0.4, signalConfidence(attractor.Signal{FractalDimension: 1.6}), 1e-12)
	assert.Equal(t, 1.0, signalConfidence(attractor.Signal{IsChaotic: true, ChaosStrength: 3, FractalDimension: 2.0}))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MinWeight = 0.5
	_, err := New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)

	cfg = testConfig()
	cfg.Weights = Weights{"henon": 1}
	_, err = New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestEnsemble_GenerateSignal(t *testing.T) {
	e, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	first := e.GenerateSignal(ctx)
	second := e.GenerateSignal(ctx)

	for _, sig := range []Signal{first, second} {
		assert.Contains(t, models.AllDecisions, sig.Decision)
		assert.GreaterOrEqual(t, sig.Confidence, 0.0)
		assert.LessOrEqual(t, sig.Confidence, 1.0)
		assert.Len(t, sig.Signals, 3)
		assert.InDelta(t, 1.0, sig.WeightsUsed.Sum(), 1e-12)
		assert.False(t, sig.Timestamp.IsZero())
	}

	assert.Len(t, e.History(0), 2)
	assert.Len(t, e.History(1), 1)

	summary, ok := e.PerformanceSummary()
	require.True(t, ok)
	assert.Equal(t, 2, summary.TotalSignals)
	var total int
	for _, n := range summary.DecisionDistribution {
		total += n
	}
	assert.Equal(t, 2, total)
}

func TestEnsemble_AdaptOnSignal(t *testing.T) {
	cfg := testConfig()
	cfg.AdaptOnSignal = true
	e, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		e.GenerateSignal(context.Background())
	}
	w := e.Weights()
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	for _, v := range w {
		assert.GreaterOrEqual(t, v, 0.1-1e-12)
		assert.LessOrEqual(t, v, 0.6+1e-12)
	}

	adapted := e.AdaptWeights()
	assert.InDelta(t, 1.0, adapted.Sum(), 1e-9)
}

func TestEnsemble_HistoryIsCapped(t *testing.T) {
	cfg := testConfig()
	cfg.HistorySize = 3
	e, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		e.GenerateSignal(context.Background())
	}
	assert.Len(t, e.History(0), 3)
}

func TestEnsemble_ResetAndSummary(t *testing.T) {
	e, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)

	_, ok := e.PerformanceSummary()
	assert.False(t, ok)

	e.GenerateSignal(context.Background())
	e.Reset()
	assert.Empty(t, e.History(0))

	require.NoError(t, e.Initialize())
	sig := e.GenerateSignal(context.Background())
	assert.Len(t, sig.Signals, 3)
}

func TestEnsemble_Tune(t *testing.T) {
	e, err := New(testConfig(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, e.Tune(VolatilityHigh))
	props := e.AttractorProperties()
	assert.Equal(t, 32.0, props[attractor.KindLorenz].Parameters["rho"])
	assert.Equal(t, -12.0, props[attractor.KindChen].Parameters["b"])
	assert.Equal(t, 6.0, props[attractor.KindRossler].Parameters["c"])

	require.NoError(t, e.Tune(VolatilityLow))
	props = e.AttractorProperties()
	assert.Equal(t, 24.0, props[attractor.KindLorenz].Parameters["rho"])

	assert.ErrorIs(t, e.Tune("extreme"), apperrors.ErrInvalidParameter)
}

// Property: For any starting weights and any decision history, adapted
// weights stay in [0.1, 0.6] and sum to 1.
func TestProperty_AdaptedWeightsConserved(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	decisionGen := gen.SliceOfN(12, gen.IntRange(0, len(models.AllDecisions)-1))

	properties.Property("weights bounded and normalised", prop.ForAll(
		func(wl, wc, wr float64, dl, dc, dr []int) bool {
			toDecisions := func(in []int) []models.Decision {
				out := make([]models.Decision, len(in))
				for i, v := range in {
					out[i] = models.AllDecisions[v]
				}
				return out
			}
			history := historyOf(map[attractor.Kind][]models.Decision{
				attractor.KindLorenz:  toDecisions(dl),
				attractor.KindChen:    toDecisions(dc),
				attractor.KindRossler: toDecisions(dr),
			})
			old := Weights{attractor.KindLorenz: wl, attractor.KindChen: wc, attractor.KindRossler: wr}

			w := AdaptWeights(old, history, DefaultAdaptParams())
			if d := w.Sum() - 1; d > 1e-9 || d < -1e-9 {
				return false
			}
			for _, v := range w {
				if v < 0.1-1e-12 || v > 0.6+1e-12 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		decisionGen,
		decisionGen,
		decisionGen,
	))

	properties.TestingRun(t)
}

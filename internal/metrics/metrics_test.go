package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Signals(t *testing.T) {
	r := NewRecorder()
	r.ObserveSignal("BUY", "normal", 0.7)
	r.ObserveSignal("BUY", "normal", 0.8)
	r.ObserveSignal("HOLD", "stable", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("BUY", "normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signals.WithLabelValues("HOLD", "stable")))
	assert.Equal(t, 0.2, testutil.ToFloat64(r.confidence))
}

func TestRecorder_Gauges(t *testing.T) {
	r := NewRecorder()
	r.ObserveWeights(map[string]float64{"lorenz": 0.4, "chen": 0.35})
	r.ObservePortfolio("p1", 0.1, 1.0)
	r.ObserveImpact("X", 0.0178)
	r.ObserveScore(true)
	r.ObserveScore(false)
	r.ObserveScore(false)

	assert.Equal(t, 0.4, testutil.ToFloat64(r.weights.WithLabelValues("lorenz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fused.WithLabelValues("p1")))
	assert.Equal(t, 0.1, testutil.ToFloat64(r.returns.WithLabelValues("p1")))
	assert.Equal(t, 0.0178, testutil.ToFloat64(r.impact.WithLabelValues("X")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scores.WithLabelValues("false")))
}

func TestRecorder_Ticks(t *testing.T) {
	r := NewRecorder()
	r.ObserveTick(5*time.Millisecond, nil)
	r.ObserveTick(time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.tickErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(r.tickDuration))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveSignal("SELL", "high_volatility", 0.9)

	path := filepath.Join(t.TempDir(), "chaosalign.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "chaosalign_signals_total"))
}

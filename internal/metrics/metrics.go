// Package metrics exposes Prometheus instrumentation for the decision engine.
//
// Series:
//   - chaosalign_signals_total{decision,regime}   ensemble decisions produced
//   - chaosalign_signal_confidence                 confidence of the last decision
//   - chaosalign_ensemble_weight{attractor}        current ensemble weights
//   - chaosalign_alignment_scores_total{fallback}  alignment scores computed
//   - chaosalign_fused_score{portfolio}            last normalized fused score
//   - chaosalign_portfolio_return{portfolio}       last weighted portfolio return
//   - chaosalign_impact_total{entity}              last scaled impact estimate
//   - chaosalign_tick_duration_seconds             engine tick latency
//   - chaosalign_tick_errors_total                 failed engine ticks
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chaosalign"

// Recorder owns a private registry so several engines can coexist in one
// process.
type Recorder struct {
	registry *prometheus.Registry

	signals      *prometheus.CounterVec
	confidence   prometheus.Gauge
	weights      *prometheus.GaugeVec
	scores       *prometheus.CounterVec
	fused        *prometheus.GaugeVec
	returns      *prometheus.GaugeVec
	impact       *prometheus.GaugeVec
	tickDuration prometheus.Histogram
	tickErrors   prometheus.Counter
}

// NewRecorder creates a recorder with every series registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Ensemble decisions produced",
			},
			[]string{"decision", "regime"},
		),
		confidence: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signal_confidence",
				Help:      "Confidence of the most recent ensemble decision",
			},
		),
		weights: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ensemble_weight",
				Help:      "Current ensemble weight per attractor",
			},
			[]string{"attractor"},
		),
		scores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alignment_scores_total",
				Help:      "Alignment scores computed, split by fallback",
			},
			[]string{"fallback"},
		),
		fused: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fused_score",
				Help:      "Most recent normalized fused score per portfolio",
			},
			[]string{"portfolio"},
		),
		returns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_return",
				Help:      "Most recent weighted return per portfolio",
			},
			[]string{"portfolio"},
		),
		impact: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "impact_total",
				Help:      "Most recent scaled impact estimate per entity",
			},
			[]string{"entity"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Engine tick latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		tickErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tick_errors_total",
				Help:      "Engine ticks that returned an error",
			},
		),
	}
	r.registry.MustRegister(
		r.signals, r.confidence, r.weights, r.scores,
		r.fused, r.returns, r.impact, r.tickDuration, r.tickErrors,
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSignal records one ensemble decision.
func (r *Recorder) ObserveSignal(decision, regime string, confidence float64) {
	r.signals.WithLabelValues(decision, regime).Inc()
	r.confidence.Set(confidence)
}

// ObserveWeights records the current ensemble weights.
func (r *Recorder) ObserveWeights(weights map[string]float64) {
	for name, w := range weights {
		r.weights.WithLabelValues(name).Set(w)
	}
}

// ObserveScore records one alignment score.
func (r *Recorder) ObserveScore(fallback bool) {
	r.scores.WithLabelValues(strconv.FormatBool(fallback)).Inc()
}

// ObservePortfolio records the headline figures of a tracked portfolio.
func (r *Recorder) ObservePortfolio(portfolioID string, ret, fused float64) {
	r.returns.WithLabelValues(portfolioID).Set(ret)
	r.fused.WithLabelValues(portfolioID).Set(fused)
}

// ObserveImpact records a scaled impact estimate.
func (r *Recorder) ObserveImpact(entityID string, total float64) {
	r.impact.WithLabelValues(entityID).Set(total)
}

// ObserveTick records the latency and outcome of one engine tick.
func (r *Recorder) ObserveTick(d time.Duration, err error) {
	r.tickDuration.Observe(d.Seconds())
	if err != nil {
		r.tickErrors.Inc()
	}
}

// WriteTextfile writes the current metrics in text exposition format, for
// node_exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

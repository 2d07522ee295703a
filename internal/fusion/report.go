package fusion

import (
	"fmt"
	"time"

	"chaosalign/internal/analysis"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/models"
)

// Trend is the direction of a series.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// consistencyScale is the return spread at which consistency reaches zero.
const consistencyScale = 0.1

// TrendAnalysis compares the latest window of returns with the window before.
type TrendAnalysis struct {
	ReturnTrend      Trend   `json:"return_trend" msgpack:"return_trend"`
	RecentAverage    float64 `json:"recent_average" msgpack:"recent_average"`
	PreviousAverage  float64 `json:"previous_average" msgpack:"previous_average"`
	ConsistencyScore float64 `json:"consistency_score" msgpack:"consistency_score"`
	Samples          int     `json:"samples" msgpack:"samples"`
}

// FusedTrend summarises the fused score history.
type FusedTrend struct {
	Trend         Trend   `json:"trend" msgpack:"trend"`
	RecentAverage float64 `json:"recent_average" msgpack:"recent_average"`
	Volatility    float64 `json:"volatility" msgpack:"volatility"`
	Peak          float64 `json:"peak" msgpack:"peak"`
	Average       float64 `json:"average" msgpack:"average"`
	Samples       int     `json:"samples" msgpack:"samples"`
}

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Recommendation kinds.
const (
	RecommendRebalance      = "rebalance"
	RecommendEthicalReview  = "ethical_review"
	RecommendRiskManagement = "risk_management"
)

// Recommendation thresholds.
const (
	rebalanceBelowFused       = 0.5
	ethicalReviewBelowAlign   = 0.6
	riskManagementBelowReturn = 0.0
)

// Recommendation is a suggested follow-up action.
type Recommendation struct {
	Type     string   `json:"type" msgpack:"type"`
	Priority Priority `json:"priority" msgpack:"priority"`
	Message  string   `json:"message" msgpack:"message"`
}

// ReportSummary is the headline of a report.
type ReportSummary struct {
	Return         float64             `json:"return" msgpack:"return"`
	Alignment      float64             `json:"alignment" msgpack:"alignment"`
	FusedScore     float64             `json:"fused_score" msgpack:"fused_score"`
	Interpretation Interpretation      `json:"interpretation" msgpack:"interpretation"`
	RiskLevel      RiskLevel           `json:"risk_level" msgpack:"risk_level"`
	MarketRegime   models.MarketRegime `json:"market_regime" msgpack:"market_regime"`
	Snapshots      int                 `json:"snapshots" msgpack:"snapshots"`
}

// Report is a portfolio's recent performance with recommendations.
type Report struct {
	PortfolioID     string              `json:"portfolio_id" msgpack:"portfolio_id"`
	GeneratedAt     time.Time           `json:"generated_at" msgpack:"generated_at"`
	Current         PerformanceSnapshot `json:"current" msgpack:"current"`
	Trends          TrendAnalysis       `json:"trends" msgpack:"trends"`
	FusedTrend      FusedTrend          `json:"fused_trend" msgpack:"fused_trend"`
	Cumulative      float64             `json:"cumulative_fused_score" msgpack:"cumulative_fused_score"`
	Recommendations []Recommendation    `json:"recommendations" msgpack:"recommendations"`
	Summary         ReportSummary       `json:"summary" msgpack:"summary"`
}

// TrendAnalysis analyses portfolio returns across the whole history.
func (t *Tracker) TrendAnalysis() TrendAnalysis {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return analyzeReturns(snapshotReturns(t.snapshots.Slice()), t.cfg.TrendWindow)
}

// FusedTrend analyses the fused score history.
func (t *Tracker) FusedTrend() FusedTrend {
	t.mu.RLock()
	defer t.mu.RUnlock()
	scores := t.fused.Slice()
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = s.Normalized
	}
	return analyzeFused(values, t.cfg.TrendWindow)
}

// Report builds a performance report from the portfolio's most recent
// snapshots. It fails with ErrDataNotFound when the portfolio was never
// tracked.
func (t *Tracker) Report(portfolioID string) (Report, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var history []PerformanceSnapshot
	for _, s := range t.snapshots.Slice() {
		if s.PortfolioID == portfolioID {
			history = append(history, s)
		}
	}
	if len(history) == 0 {
		return Report{}, apperrors.Wrapf(apperrors.ErrDataNotFound, "no snapshots for portfolio %s", portfolioID)
	}
	if len(history) > t.cfg.ReportDepth {
		history = history[len(history)-t.cfg.ReportDepth:]
	}
	current := history[len(history)-1]

	fusedValues := make([]float64, len(history))
	for i, s := range history {
		fusedValues[i] = s.Fused.Normalized
	}

	return Report{
		PortfolioID:     portfolioID,
		GeneratedAt:     t.now(),
		Current:         current,
		Trends:          analyzeReturns(snapshotReturns(history), t.cfg.TrendWindow),
		FusedTrend:      analyzeFused(fusedValues, t.cfg.TrendWindow),
		Cumulative:      analysis.Mean(fusedValues),
		Recommendations: recommend(current),
		Summary: ReportSummary{
			Return:         current.Financial.TotalReturn,
			Alignment:      current.Alignment.Score,
			FusedScore:     current.Fused.Normalized,
			Interpretation: current.Fused.Interpretation,
			RiskLevel:      current.Risk.Level,
			MarketRegime:   current.MarketRegime,
			Snapshots:      len(history),
		},
	}, nil
}

func recommend(s PerformanceSnapshot) []Recommendation {
	var recs []Recommendation
	if s.Fused.Normalized < rebalanceBelowFused {
		recs = append(recs, Recommendation{
			Type:     RecommendRebalance,
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("Fused score %.2f is weak; rebalance toward aligned, performing holdings", s.Fused.Normalized),
		})
	}
	if s.Alignment.Score < ethicalReviewBelowAlign {
		recs = append(recs, Recommendation{
			Type:     RecommendEthicalReview,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("Portfolio alignment %.2f is below %.2f; review holdings", s.Alignment.Score, ethicalReviewBelowAlign),
		})
	}
	if s.Financial.TotalReturn < riskManagementBelowReturn {
		recs = append(recs, Recommendation{
			Type:     RecommendRiskManagement,
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("Portfolio return %.2f%% is negative; review position sizing and stops", s.Financial.TotalReturn*100),
		})
	}
	return recs
}

func snapshotReturns(history []PerformanceSnapshot) []float64 {
	out := make([]float64, len(history))
	for i, s := range history {
		out[i] = s.Financial.TotalReturn
	}
	return out
}

// windows splits values into the latest window and the one before it. When
// nothing precedes the latest window the previous average equals the recent.
func windows(values []float64, size int) (recent, previous float64) {
	n := len(values)
	start := n - size
	if start < 0 {
		start = 0
	}
	recent = analysis.Mean(values[start:])
	prevStart := start - size
	if prevStart < 0 {
		prevStart = 0
	}
	if prevStart == start {
		return recent, recent
	}
	return recent, analysis.Mean(values[prevStart:start])
}

func direction(recent, previous float64) Trend {
	switch {
	case recent > previous:
		return TrendImproving
	case recent < previous:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func analyzeReturns(returns []float64, window int) TrendAnalysis {
	if len(returns) < 2 {
		return TrendAnalysis{ReturnTrend: TrendInsufficientData, Samples: len(returns)}
	}
	recent, previous := windows(returns, window)
	start := len(returns) - window
	if start < 0 {
		start = 0
	}
	consistency := 1 - analysis.PopStdDev(returns[start:])/consistencyScale
	if consistency < 0 {
		consistency = 0
	}
	return TrendAnalysis{
		ReturnTrend:      direction(recent, previous),
		RecentAverage:    recent,
		PreviousAverage:  previous,
		ConsistencyScore: consistency,
		Samples:          len(returns),
	}
}

func analyzeFused(values []float64, window int) FusedTrend {
	if len(values) < 2 {
		ft := FusedTrend{Trend: TrendInsufficientData, Samples: len(values)}
		if len(values) == 1 {
			ft.RecentAverage = values[0]
			ft.Peak = values[0]
			ft.Average = values[0]
		}
		return ft
	}
	recent, previous := windows(values, window)
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	return FusedTrend{
		Trend:         direction(recent, previous),
		RecentAverage: recent,
		Volatility:    analysis.PopStdDev(values[start:]),
		Peak:          analysis.MaxValue(values),
		Average:       analysis.Mean(values),
		Samples:       len(values),
	}
}

package fusion

import (
	"math"

	"chaosalign/internal/alignment"
	"chaosalign/internal/analysis"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/models"
)

// PositionMetrics is the valuation of one holding.
type PositionMetrics struct {
	Symbol       string  `json:"symbol" msgpack:"symbol"`
	Weight       float64 `json:"weight" msgpack:"weight"`
	CurrentPrice float64 `json:"current_price" msgpack:"current_price"`
	Quantity     float64 `json:"quantity" msgpack:"quantity"`
	Return       float64 `json:"return" msgpack:"return"`
	Value        float64 `json:"value" msgpack:"value"`
	PnL          float64 `json:"pnl" msgpack:"pnl"`
}

// FinancialMetrics summarises portfolio valuation.
type FinancialMetrics struct {
	TotalValue    float64           `json:"total_value" msgpack:"total_value"`
	TotalCost     float64           `json:"total_cost" msgpack:"total_cost"`
	TotalPnL      float64           `json:"total_pnl" msgpack:"total_pnl"`
	TotalReturn   float64           `json:"total_return" msgpack:"total_return"`
	Volatility    float64           `json:"volatility" msgpack:"volatility"`
	SharpeRatio   float64           `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	MaxDrawdown   float64           `json:"max_drawdown" msgpack:"max_drawdown"`
	PositionCount int               `json:"position_count" msgpack:"position_count"`
	Positions     []PositionMetrics `json:"positions" msgpack:"positions"`
}

// PositionAlignment is the alignment contribution of one holding.
type PositionAlignment struct {
	Symbol   string          `json:"symbol" msgpack:"symbol"`
	Weight   float64         `json:"weight" msgpack:"weight"`
	Score    float64         `json:"score" msgpack:"score"`
	Level    alignment.Level `json:"level" msgpack:"level"`
	Fallback bool            `json:"fallback" msgpack:"fallback"`
}

// AlignmentMetrics is the weighted alignment of a portfolio.
type AlignmentMetrics struct {
	Score     float64                         `json:"score" msgpack:"score"`
	Level     alignment.Level                 `json:"level" msgpack:"level"`
	Criteria  map[alignment.Criterion]float64 `json:"criteria" msgpack:"criteria"`
	Positions []PositionAlignment             `json:"positions" msgpack:"positions"`
}

// BenchmarkComparison compares the portfolio return with a benchmark.
type BenchmarkComparison struct {
	Symbol            string  `json:"symbol" msgpack:"symbol"`
	Return            float64 `json:"return" msgpack:"return"`
	Outperformance    float64 `json:"outperformance" msgpack:"outperformance"`
	OutperformancePct float64 `json:"outperformance_pct" msgpack:"outperformance_pct"`
}

// RiskLevel classifies overall portfolio risk.
type RiskLevel string

const (
	RiskHigh     RiskLevel = "high"
	RiskModerate RiskLevel = "moderate"
	RiskLow      RiskLevel = "low"
)

// RiskMetrics describes portfolio risk.
type RiskMetrics struct {
	Volatility      float64   `json:"volatility" msgpack:"volatility"`
	SharpeRatio     float64   `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	Diversification float64   `json:"diversification" msgpack:"diversification"`
	Concentration   float64   `json:"concentration" msgpack:"concentration"`
	MaxDrawdown     float64   `json:"max_drawdown" msgpack:"max_drawdown"`
	Level           RiskLevel `json:"level" msgpack:"level"`
}

// EntityScorer rates one entity's alignment. *alignment.Scorer satisfies it.
type EntityScorer interface {
	Score(entityID string, attrs alignment.Attributes) alignment.Score
}

var _ EntityScorer = (*alignment.Scorer)(nil)

// ValidatePositions rejects negative weights and positions with no way to
// derive a quantity.
func ValidatePositions(positions []models.Position) error {
	for _, p := range positions {
		if p.Weight < 0 || !analysis.IsFinite(p.Weight) {
			return apperrors.NewValidationError("position.weight", p.Weight, "must be non-negative", apperrors.ErrInvalidPosition)
		}
		if p.AvgPrice <= 0 && p.Quantity == 0 && p.Value == 0 {
			return apperrors.NewValidationError("position.avg_price", p.AvgPrice,
				"position "+p.Symbol+" has no average price, quantity or value", apperrors.ErrInvalidPosition)
		}
	}
	return nil
}

// periodReturn is the return implied by a quote: first to last close of its
// history when it has at least two bars, else its reported return.
func periodReturn(q models.Quote) float64 {
	if len(q.History) >= 2 {
		first := q.History[0].Close
		last := q.History[len(q.History)-1].Close
		if first > 0 {
			return (last - first) / first
		}
	}
	return q.Return
}

func (t *Tracker) financialMetrics(positions []models.Position, snap models.MarketSnapshot) FinancialMetrics {
	var (
		m              FinancialMetrics
		weightedReturn float64
		totalWeight    float64
	)
	for _, p := range positions {
		q, ok := snap[p.Symbol]
		if !ok {
			continue
		}
		price := q.Price(t.cfg.DefaultPrice)
		qty := p.Quantity
		if qty == 0 && p.AvgPrice > 0 {
			qty = p.Value / p.AvgPrice
		}
		var ret float64
		if p.AvgPrice > 0 {
			ret = (price - p.AvgPrice) / p.AvgPrice
		}
		value := price * qty
		cost := p.AvgPrice * qty

		m.TotalValue += value
		m.TotalCost += cost
		weightedReturn += ret * p.Weight
		totalWeight += p.Weight
		m.Positions = append(m.Positions, PositionMetrics{
			Symbol:       p.Symbol,
			Weight:       p.Weight,
			CurrentPrice: price,
			Quantity:     qty,
			Return:       ret,
			Value:        value,
			PnL:          value - cost,
		})
	}
	if totalWeight > 0 {
		m.TotalReturn = weightedReturn / totalWeight
	}
	m.TotalPnL = m.TotalValue - m.TotalCost
	m.PositionCount = len(m.Positions)

	returns := make([]float64, len(positions))
	for i, p := range positions {
		if q, ok := snap[p.Symbol]; ok {
			returns[i] = periodReturn(q)
		}
	}
	m.Volatility = analysis.PopStdDev(returns)
	if m.Volatility > 0 {
		m.SharpeRatio = (analysis.Mean(returns) - t.cfg.RiskFreeRate) / m.Volatility
	}
	return m
}

func (t *Tracker) alignmentMetrics(positions []models.Position) AlignmentMetrics {
	var (
		weighted    float64
		totalWeight float64
		perCrit     = make(map[alignment.Criterion]float64, len(alignment.AllCriteria))
		out         AlignmentMetrics
	)
	for _, p := range positions {
		var attrs alignment.Attributes
		if t.attrs != nil {
			attrs, _ = t.attrs.Attributes(p.Symbol)
		}
		sc := t.scorer.Score(p.Symbol, attrs)
		value := sc.Overall
		if sc.Fallback {
			value = t.cfg.FallbackAlignment
		}
		weighted += value * p.Weight
		totalWeight += p.Weight
		for _, c := range alignment.AllCriteria {
			cv := sc.Criteria[c]
			if sc.Fallback {
				cv = t.cfg.FallbackAlignment
			}
			perCrit[c] += cv * p.Weight
		}
		out.Positions = append(out.Positions, PositionAlignment{
			Symbol:   p.Symbol,
			Weight:   p.Weight,
			Score:    value,
			Level:    sc.Level,
			Fallback: sc.Fallback,
		})
	}

	out.Criteria = make(map[alignment.Criterion]float64, len(alignment.AllCriteria))
	if totalWeight > 0 {
		out.Score = weighted / totalWeight
		for _, c := range alignment.AllCriteria {
			out.Criteria[c] = perCrit[c] / totalWeight
		}
	} else {
		out.Score = t.cfg.FallbackAlignment
		for _, c := range alignment.AllCriteria {
			out.Criteria[c] = t.cfg.FallbackAlignment
		}
	}
	out.Level = alignment.LevelFor(out.Score)
	return out
}

func (t *Tracker) benchmarks(portfolioReturn float64, snap models.MarketSnapshot) map[string]BenchmarkComparison {
	out := make(map[string]BenchmarkComparison)
	for _, sym := range t.cfg.Benchmarks {
		q, ok := snap[sym]
		if !ok {
			continue
		}
		br := periodReturn(q)
		diff := portfolioReturn - br
		var pct float64
		if br != 0 {
			pct = diff / math.Abs(br)
		}
		out[sym] = BenchmarkComparison{
			Symbol:            sym,
			Return:            br,
			Outperformance:    diff,
			OutperformancePct: pct,
		}
	}
	return out
}

// marketRegime classifies the snapshot by mean nonzero quote volatility.
func (t *Tracker) marketRegime(snap models.MarketSnapshot) models.MarketRegime {
	if len(snap) == 0 {
		return models.RegimeUnknown
	}
	var vols []float64
	for _, q := range snap {
		if q.Volatility != 0 {
			vols = append(vols, q.Volatility)
		}
	}
	avg := t.cfg.Regime.DefaultVolatility
	if len(vols) > 0 {
		avg = analysis.Mean(vols)
	}
	switch {
	case avg > t.cfg.Regime.High:
		return models.RegimeHighVolatility
	case avg > t.cfg.Regime.Moderate:
		return models.RegimeModerateVolatility
	case avg < t.cfg.Regime.Low:
		return models.RegimeLowVolatility
	default:
		return models.RegimeNormal
	}
}

func (t *Tracker) riskMetrics(fin FinancialMetrics, positions []models.Position) RiskMetrics {
	r := RiskMetrics{
		Volatility:  fin.Volatility,
		SharpeRatio: fin.SharpeRatio,
		MaxDrawdown: fin.MaxDrawdown,
	}
	var hhi float64
	for _, p := range positions {
		hhi += p.Weight * p.Weight
		if p.Weight > r.Concentration {
			r.Concentration = p.Weight
		}
	}
	if hhi > 0 {
		r.Diversification = 1 / math.Sqrt(hhi)
	}

	th := t.cfg.Risk
	switch {
	case r.Volatility > th.HighVolatility || r.MaxDrawdown > th.HighDrawdown || r.Concentration > th.HighConcentration:
		r.Level = RiskHigh
	case r.Volatility > th.ModerateVolatility || r.MaxDrawdown > th.ModerateDrawdown || r.Concentration > th.ModerateConcentration:
		r.Level = RiskModerate
	default:
		r.Level = RiskLow
	}
	return r
}

// MaxDrawdown is the largest peak-to-trough fall of values as a fraction of
// the peak.
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

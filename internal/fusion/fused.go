package fusion

import (
	"math"
)

// Interpretation labels a normalized fused score.
type Interpretation string

const (
	InterpretExceptional Interpretation = "Exceptional"
	InterpretStrong      Interpretation = "Strong"
	InterpretGood        Interpretation = "Good"
	InterpretModerate    Interpretation = "Moderate"
	InterpretWeak        Interpretation = "Weak"
	InterpretNeutral     Interpretation = "Neutral"
	InterpretNegative    Interpretation = "Negative"
)

// Interpret maps a normalized score onto its label.
func Interpret(score float64) Interpretation {
	switch {
	case score >= 2.0:
		return InterpretExceptional
	case score >= 1.5:
		return InterpretStrong
	case score >= 1.0:
		return InterpretGood
	case score >= 0.5:
		return InterpretModerate
	case score > 0:
		return InterpretWeak
	case score == 0:
		return InterpretNeutral
	default:
		return InterpretNegative
	}
}

// FusedComponents breaks a fused score into its inputs.
type FusedComponents struct {
	FinancialPerformance float64 `json:"financial_performance" msgpack:"financial_performance"`
	Alignment            float64 `json:"alignment" msgpack:"alignment"`
	SynergyBonus         float64 `json:"synergy_bonus" msgpack:"synergy_bonus"`
}

// FusedScore combines return and alignment into one figure.
type FusedScore struct {
	Raw            float64         `json:"raw" msgpack:"raw"`
	Normalized     float64         `json:"normalized" msgpack:"normalized"`
	Return         float64         `json:"return" msgpack:"return"`
	Alignment      float64         `json:"alignment" msgpack:"alignment"`
	Components     FusedComponents `json:"components" msgpack:"components"`
	Interpretation Interpretation  `json:"interpretation" msgpack:"interpretation"`
}

// Fuse computes raw = return × alignment and normalized = raw /
// NormalizationReturn. The synergy bonus is reported as a component and is
// not added into the normalized score.
func Fuse(ret, align float64, cfg Config) FusedScore {
	raw := ret * align
	normalized := raw / cfg.NormalizationReturn
	return FusedScore{
		Raw:        raw,
		Normalized: normalized,
		Return:     ret,
		Alignment:  align,
		Components: FusedComponents{
			FinancialPerformance: ret,
			Alignment:            align,
			SynergyBonus:         synergyBonus(ret, align, cfg),
		},
		Interpretation: Interpret(normalized),
	}
}

func synergyBonus(ret, align float64, cfg Config) float64 {
	if ret > 0 && align > cfg.SynergyThreshold {
		return cfg.SynergyFactor * math.Sqrt(ret*align)
	}
	return 0
}

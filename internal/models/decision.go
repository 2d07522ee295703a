package models

import (
	"fmt"
	"strings"
)

// Decision represents a five-level trading decision.
type Decision string

const (
	DecisionStrongBuy  Decision = "STRONG_BUY"
	DecisionBuy        Decision = "BUY"
	DecisionHold       Decision = "HOLD"
	DecisionSell       Decision = "SELL"
	DecisionStrongSell Decision = "STRONG_SELL"
)

// AllDecisions lists decisions from most bullish to most bearish.
var AllDecisions = []Decision{
	DecisionStrongBuy,
	DecisionBuy,
	DecisionHold,
	DecisionSell,
	DecisionStrongSell,
}

// Value maps the decision onto the integer scale {2, 1, 0, -1, -2}.
// Unknown decisions map to 0.
func (d Decision) Value() int {
	switch d {
	case DecisionStrongBuy:
		return 2
	case DecisionBuy:
		return 1
	case DecisionSell:
		return -1
	case DecisionStrongSell:
		return -2
	default:
		return 0
	}
}

// IsBullish reports whether the decision is BUY or STRONG_BUY.
func (d Decision) IsBullish() bool {
	return d.Value() > 0
}

// IsBearish reports whether the decision is SELL or STRONG_SELL.
func (d Decision) IsBearish() bool {
	return d.Value() < 0
}

// Opposite reports whether other is the mirror image of d: STRONG_BUY and
// STRONG_SELL, or BUY and SELL.
func (d Decision) Opposite(other Decision) bool {
	v := d.Value()
	return v != 0 && v == -other.Value()
}

// DecisionFromValue maps an ensemble value onto a decision using the
// thresholds >1.5, >0.5, <-1.5, <-0.5.
func DecisionFromValue(v float64) Decision {
	switch {
	case v > 1.5:
		return DecisionStrongBuy
	case v > 0.5:
		return DecisionBuy
	case v < -1.5:
		return DecisionStrongSell
	case v < -0.5:
		return DecisionSell
	default:
		return DecisionHold
	}
}

// ParseDecision parses a decision name, case-insensitively.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllDecisions {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

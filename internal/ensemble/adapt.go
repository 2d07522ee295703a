package ensemble

import (
	"chaosalign/internal/analysis"
	"chaosalign/internal/attractor"
	"chaosalign/internal/models"
)

// AdaptParams tunes AdaptWeights.
type AdaptParams struct {
	Rate      float64
	Window    int
	MinWeight float64
	MaxWeight float64
}

// DefaultAdaptParams returns rate 0.1 over a 10-signal window with weights
// bounded to [0.1, 0.6].
func DefaultAdaptParams() AdaptParams {
	return AdaptParams{Rate: 0.1, Window: 10, MinWeight: 0.1, MaxWeight: 0.6}
}

// Consistency scores how steady a run of decisions is. It starts at 0.5,
// adds 0.1 for each repeated decision and subtracts 0.2 for each flip to the
// mirror decision, clamped to [0, 1]. Fewer than two decisions score 0.5.
func Consistency(decisions []models.Decision) float64 {
	if len(decisions) < 2 {
		return 0.5
	}
	var score float64
	for i := 1; i < len(decisions); i++ {
		prev, cur := decisions[i-1], decisions[i]
		switch {
		case prev == cur:
			score += 0.1
		case prev.Opposite(cur):
			score -= 0.2
		}
	}
	return analysis.Clamp01(0.5 + score)
}

// AdaptWeights returns new weights nudged towards the attractors whose
// recent decisions were consistent. It is a pure function of its inputs:
// with fewer than two history entries a copy of old is returned; otherwise
// each weight moves by Rate·(consistency − 0.5) and the result is
// normalised within [MinWeight, MaxWeight].
func AdaptWeights(old Weights, history []Signal, p AdaptParams) Weights {
	if len(history) < 2 {
		return old.Clone()
	}

	window := p.Window
	if window < 2 {
		window = 2
	}
	recent := history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	next := make(Weights, len(old))
	for kind, w := range old {
		next[kind] = w + p.Rate*(Consistency(decisionsOf(kind, recent))-0.5)
	}
	return Normalize(next, p.MinWeight, p.MaxWeight)
}

func decisionsOf(kind attractor.Kind, history []Signal) []models.Decision {
	out := make([]models.Decision, 0, len(history))
	for _, s := range history {
		if sig, ok := s.Signals[kind]; ok {
			out = append(out, sig.Decision)
		}
	}
	return out
}

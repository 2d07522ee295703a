package ensemble

import (
	"fmt"
	"math"
	"sort"

	"chaosalign/internal/analysis"
	"chaosalign/internal/attractor"
	apperrors "chaosalign/internal/errors"
)

// Weights maps each attractor to its share of the ensemble vote.
type Weights map[attractor.Kind]float64

// DefaultWeights returns the prior weights: lorenz 0.40, chen 0.35, rossler 0.25.
func DefaultWeights() Weights {
	return Weights{
		attractor.KindLorenz:  0.40,
		attractor.KindChen:    0.35,
		attractor.KindRossler: 0.25,
	}
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// Kinds returns the weighted kinds in a stable order.
func (w Weights) Kinds() []attractor.Kind {
	kinds := make([]attractor.Kind, 0, len(w))
	for k := range w {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Validate checks every weight is finite and non-negative and that bounds
// [lo, hi] admit a normalised vector.
func (w Weights) Validate(lo, hi float64) error {
	if len(w) == 0 {
		return apperrors.NewValidationError("weights", w, "at least one weight required", apperrors.ErrConfigInvalid)
	}
	for k, v := range w {
		if !analysis.IsFinite(v) || v < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("weights.%s", k), v, "must be finite and non-negative", apperrors.ErrConfigInvalid)
		}
	}
	n := float64(len(w))
	if lo < 0 || hi < lo || n*lo > 1 || n*hi < 1 {
		return apperrors.NewValidationError("weight_bounds", fmt.Sprintf("[%g,%g]", lo, hi),
			fmt.Sprintf("no normalised vector of %d weights fits", len(w)), apperrors.ErrConfigInvalid)
	}
	return nil
}

// Normalize rescales w to sum to 1 while keeping every weight within
// [lo, hi]. When plain proportional rescaling already respects the bounds
// the result equals it; otherwise a common scale factor k is found so that
// Σ clamp(k·wᵢ, lo, hi) = 1. Bounds must admit a solution (see Validate).
func Normalize(w Weights, lo, hi float64) Weights {
	out := make(Weights, len(w))
	if len(w) == 0 {
		return out
	}

	clamped := make(Weights, len(w))
	for k, v := range w {
		clamped[k] = analysis.Clamp(v, lo, hi)
	}

	if total := clamped.Sum(); total > 0 {
		fits := true
		for k, v := range clamped {
			out[k] = v / total
			if out[k] < lo || out[k] > hi {
				fits = false
			}
		}
		if fits {
			return out
		}
	}

	// every clamped weight is at least lo; a zero lower bound needs a floor
	// so the scale search stays meaningful
	floor := 1e-12
	if lo > 0 {
		floor = lo
	}
	smallest := math.Inf(1)
	for k, v := range clamped {
		if v < floor {
			v = floor
			clamped[k] = v
		}
		smallest = math.Min(smallest, v)
	}

	mass := func(scale float64) float64 {
		var s float64
		for _, v := range clamped {
			s += analysis.Clamp(v*scale, lo, hi)
		}
		return s
	}

	low, high := 0.0, hi/smallest
	for i := 0; i < 200 && high-low > 1e-15*high; i++ {
		mid := (low + high) / 2
		if mass(mid) < 1 {
			low = mid
		} else {
			high = mid
		}
	}

	for k, v := range clamped {
		out[k] = analysis.Clamp(v*high, lo, hi)
	}
	return out
}

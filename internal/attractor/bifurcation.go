package attractor

import (
	"fmt"
	"math"

	apperrors "chaosalign/internal/errors"
)

// Bifurcation scan settings.
const (
	bifurcationSettle   = 1000
	bifurcationSamples  = 100
	bifurcationLyapunov = 500
	chaoticThreshold    = 0.1
)

// BifurcationPoint is one sample of a parameter sweep.
type BifurcationPoint struct {
	Parameter float64   `json:"parameter"`
	Lyapunov  float64   `json:"lyapunov"`
	Chaotic   bool      `json:"chaotic"`
	Values    []float64 `json:"values"`
}

// PeriodicWindow marks a sweep point with few distinct x values.
type PeriodicWindow struct {
	Parameter float64 `json:"parameter"`
	Period    int     `json:"period"`
	Lyapunov  float64 `json:"lyapunov"`
}

// defaultPreset is the preset a sweep restarts each point from.
func defaultPreset(kind Kind) Preset {
	if kind == KindLorenz {
		return PresetClassic
	}
	return PresetChaotic
}

// BifurcationScan sweeps param over [min, max] in steps+1 points. At each
// point a fresh attractor is settled, then the x component of the next
// samples is recorded along with a Lyapunov estimate.
func BifurcationScan(kind Kind, param string, min, max float64, steps int) ([]BifurcationPoint, error) {
	if steps < 1 || !(max > min) {
		return nil, apperrors.NewValidationError("range", fmt.Sprintf("[%g,%g]/%d", min, max, steps),
			"need max > min and at least one step", apperrors.ErrInvalidParameter)
	}

	sys, err := New(kind)
	if err != nil {
		return nil, err
	}

	points := make([]BifurcationPoint, 0, steps+1)
	stride := (max - min) / float64(steps)
	for i := 0; i <= steps; i++ {
		value := min + float64(i)*stride
		if err := sys.SetParameters(Parameters{param: value}); err != nil {
			return nil, err
		}
		sys.Reset()
		if err := sys.SetInitialConditions(defaultPreset(kind)); err != nil {
			return nil, err
		}
		for j := 0; j < bifurcationSettle; j++ {
			sys.Evolve()
		}
		values := make([]float64, bifurcationSamples)
		for j := range values {
			values[j] = sys.Evolve()[0]
		}
		lyapunov := sys.LyapunovExponent(bifurcationLyapunov)
		points = append(points, BifurcationPoint{
			Parameter: value,
			Lyapunov:  lyapunov,
			Chaotic:   lyapunov > chaoticThreshold,
			Values:    values,
		})
	}
	return points, nil
}

// PeriodicWindows returns interior sweep points whose sampled x values, rounded
// to two decimals, take at most three distinct values and fewer than both
// neighbours.
func PeriodicWindows(points []BifurcationPoint) []PeriodicWindow {
	var windows []PeriodicWindow
	for i := 1; i < len(points)-1; i++ {
		cur := distinctRounded(points[i].Values)
		if cur <= 3 && cur < distinctRounded(points[i-1].Values) && cur < distinctRounded(points[i+1].Values) {
			windows = append(windows, PeriodicWindow{
				Parameter: points[i].Parameter,
				Period:    cur,
				Lyapunov:  points[i].Lyapunov,
			})
		}
	}
	return windows
}

func distinctRounded(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[math.Round(v*100)/100] = struct{}{}
	}
	return len(seen)
}

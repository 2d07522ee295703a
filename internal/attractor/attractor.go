// Package attractor simulates three-dimensional chaotic dynamical systems
// (Lorenz, Chen, Rössler) and turns their state into trading signals.
package attractor

import (
	"time"

	"chaosalign/internal/models"
)

// Kind identifies an attractor variant.
type Kind string

const (
	KindLorenz  Kind = "lorenz"
	KindChen    Kind = "chen"
	KindRossler Kind = "rossler"
)

// AllKinds lists the supported variants in ensemble order.
var AllKinds = []Kind{KindLorenz, KindChen, KindRossler}

// Preset names a set of initial conditions.
type Preset string

const (
	PresetClassic     Preset = "classic"
	PresetSymmetric   Preset = "symmetric"
	PresetPeriodic    Preset = "periodic"
	PresetFixedPoint  Preset = "fixed_point"
	PresetChaotic     Preset = "chaotic"
	PresetStable      Preset = "stable"
	PresetHighEnergy  Preset = "high_energy"
	PresetLargeSpiral Preset = "large_spiral"
	PresetRandom      Preset = "random"
)

// Integration constants.
const (
	Dimensions      = 3
	TimeStep        = 0.01
	TrajectoryCap   = 5000
	DiagnosticsCap  = 100
	DefaultLyapunov = 1000
	DefaultFractal  = 2000
)

// State is a point in phase space.
type State [Dimensions]float64

// Bounds is the closed box every state component is clamped to.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether every component of s lies within the bounds.
func (b Bounds) Contains(s State) bool {
	for _, v := range s {
		if v < b.Min || v > b.Max {
			return false
		}
	}
	return true
}

// Parameters maps parameter names (sigma, rho, beta or a, b, c) to values.
type Parameters map[string]float64

// Clone returns an independent copy.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Components are the named signal channels of an attractor state.
// Channels a variant does not use stay zero.
type Components struct {
	Primary      float64 `json:"primary"`
	Confirmation float64 `json:"confirmation"`
	Momentum     float64 `json:"momentum"`
	Timing       float64 `json:"timing"`
	Volatility   float64 `json:"volatility"`
}

// Signal is the trading view of one attractor at one instant.
type Signal struct {
	Attractor        Kind            `json:"attractor"`
	Timestamp        time.Time       `json:"timestamp"`
	Decision         models.Decision `json:"decision"`
	Raw              Components      `json:"raw"`
	Normalized       Components      `json:"normalized"`
	ChaosStrength    float64         `json:"chaos_strength"`
	FractalDimension float64         `json:"fractal_dimension"`
	IsChaotic        bool            `json:"is_chaotic"`
	SpiralPhase      float64         `json:"spiral_phase,omitempty"`
	SpiralRadius     float64         `json:"spiral_radius,omitempty"`
}

// Properties summarises the diagnostics of an attractor.
type Properties struct {
	Kind             Kind               `json:"kind"`
	State            State              `json:"state"`
	TrajectoryLength int                `json:"trajectory_length"`
	LyapunovExponent float64            `json:"lyapunov_exponent"`
	FractalDimension float64            `json:"fractal_dimension"`
	IsChaotic        bool               `json:"is_chaotic"`
	Parameters       Parameters         `json:"parameters"`
	Bounds           Bounds             `json:"bounds"`
	Extras           map[string]float64 `json:"extras,omitempty"`
	Labels           map[string]string  `json:"labels,omitempty"`
}

// Attractor is the behaviour shared by every variant.
type Attractor interface {
	Kind() Kind
	State() State
	SetState(v []float64) error
	SetInitialConditions(p Preset) error
	Parameters() Parameters
	SetParameters(p Parameters) error
	Bounds() Bounds
	Evolve() State
	Trajectory() []State
	LyapunovExponent(n int) float64
	FractalDimension(n int) float64
	Properties() Properties
	GenerateSignal() Signal
	Reset()
}

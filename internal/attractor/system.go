package attractor

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"chaosalign/internal/analysis"
	apperrors "chaosalign/internal/errors"
	"chaosalign/internal/ringbuf"
)

// System is the single concrete Attractor. Its behaviour comes from a variant
// table entry. A System is owned by one caller and is not safe for concurrent use.
type System struct {
	v          *variant
	params     Parameters
	state      State
	trajectory *ringbuf.Ring[State]
	lyapunov   *ringbuf.Ring[float64]
	fractal    *ringbuf.Ring[float64]
	rng        *rand.Rand
	now        func() time.Time
}

var _ Attractor = (*System)(nil)

// New creates an attractor of the given kind with default parameters and
// a zero state.
func New(kind Kind) (*System, error) {
	v, ok := variants[kind]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownAttractor, "attractor %q", kind)
	}
	return newSystem(v), nil
}

// NewLorenz creates a Lorenz attractor (σ=10, ρ=28, β=8/3).
func NewLorenz() *System { return newSystem(variants[KindLorenz]) }

// NewChen creates a Chen attractor (a=5, b=-10, c=-0.38).
func NewChen() *System { return newSystem(variants[KindChen]) }

// NewRossler creates a Rössler attractor (a=0.2, b=0.2, c=5.7).
func NewRossler() *System { return newSystem(variants[KindRossler]) }

func newSystem(v *variant) *System {
	return &System{
		v:          v,
		params:     v.defaults.Clone(),
		trajectory: ringbuf.New[State](TrajectoryCap),
		lyapunov:   ringbuf.New[float64](DiagnosticsCap),
		fractal:    ringbuf.New[float64](DiagnosticsCap),
		rng:        rand.New(rand.NewSource(1)),
		now:        time.Now,
	}
}

// SetRand replaces the random source used by the random preset.
func (s *System) SetRand(r *rand.Rand) {
	if r != nil {
		s.rng = r
	}
}

// Kind returns the variant of this system.
func (s *System) Kind() Kind { return s.v.kind }

// State returns the current state.
func (s *System) State() State { return s.state }

// Bounds returns the clamp box of this variant.
func (s *System) Bounds() Bounds { return s.v.bounds }

// Parameters returns a copy of the current parameters.
func (s *System) Parameters() Parameters { return s.params.Clone() }

// SetState replaces the state and restarts the trajectory from it.
func (s *System) SetState(v []float64) error {
	if len(v) != Dimensions {
		return apperrors.NewValidationError("state", len(v),
			fmt.Sprintf("expected %d components", Dimensions), apperrors.ErrDimensionMismatch)
	}
	var st State
	copy(st[:], v)
	s.setState(st)
	return nil
}

func (s *System) setState(st State) {
	s.state = st
	s.trajectory.Reset()
	s.trajectory.Push(st)
}

// SetInitialConditions applies a named preset.
func (s *System) SetInitialConditions(p Preset) error {
	if p == PresetRandom {
		s.setState(s.v.random(s.rng))
		return nil
	}
	st, ok := s.v.preset(p, s.params)
	if !ok {
		return apperrors.Wrapf(apperrors.ErrUnknownPreset, "%s preset %q", s.v.kind, p)
	}
	s.setState(st)
	return nil
}

// SetParameters overrides the named parameters. Names not given keep their
// current value; unknown names and non-finite values are rejected and leave
// the parameters unchanged.
func (s *System) SetParameters(p Parameters) error {
	for name, val := range p {
		if _, ok := s.v.defaults[name]; !ok {
			return apperrors.NewValidationError(name, val,
				fmt.Sprintf("not a %s parameter", s.v.kind), apperrors.ErrInvalidParameter)
		}
		if !analysis.IsFinite(val) {
			return apperrors.NewValidationError(name, val, "must be finite", apperrors.ErrInvalidParameter)
		}
	}
	for name, val := range p {
		s.params[name] = val
	}
	return nil
}

// Evolve advances the state by one RK4 step of TimeStep, clamps it to the
// bounds and records it in the trajectory.
func (s *System) Evolve() State {
	const dt = TimeStep
	st := s.state
	f := s.v.derive

	k1 := scale(f(s.params, st), dt)
	k2 := scale(f(s.params, add(st, scale(k1, 0.5))), dt)
	k3 := scale(f(s.params, add(st, scale(k2, 0.5))), dt)
	k4 := scale(f(s.params, add(st, k3)), dt)

	var next State
	for i := range next {
		v := st[i] + (k1[i]+2*k2[i]+2*k3[i]+k4[i])/6
		next[i] = analysis.Clamp(v, s.v.bounds.Min, s.v.bounds.Max)
	}

	s.state = next
	s.trajectory.Push(next)
	return next
}

// Trajectory returns the recorded states, oldest first.
func (s *System) Trajectory() []State { return s.trajectory.Slice() }

// ensure evolves until the trajectory holds at least n states, capped at the
// trajectory capacity.
func (s *System) ensure(n int) int {
	if n > TrajectoryCap {
		n = TrajectoryCap
	}
	if n < 2 {
		n = 2
	}
	for s.trajectory.Len() < n {
		s.Evolve()
	}
	return n
}

// LyapunovExponent estimates the largest Lyapunov exponent as the mean log
// of the per-unit-time step length over the last n states. Positive values
// indicate chaos.
func (s *System) LyapunovExponent(n int) float64 {
	n = s.ensure(n)
	recent := s.trajectory.Last(n)

	var sum float64
	var count int
	for i := 1; i < len(recent); i++ {
		d := distance(recent[i], recent[i-1])
		if d > 0 {
			sum += math.Log(d / TimeStep)
			count++
		}
	}

	var lyapunov float64
	if count > 0 {
		lyapunov = sum / float64(count)
	}
	s.lyapunov.Push(lyapunov)
	return lyapunov
}

// FractalDimension estimates the box-counting dimension over the last n states.
func (s *System) FractalDimension(n int) float64 {
	n = s.ensure(n)
	recent := s.trajectory.Last(n)

	points := make([][3]float64, len(recent))
	for i, st := range recent {
		points[i] = st
	}
	dim := analysis.PointDimension3(points, analysis.DefaultBoxScales)
	s.fractal.Push(dim)
	return dim
}

// LyapunovHistory returns recent Lyapunov estimates, oldest first.
func (s *System) LyapunovHistory() []float64 { return s.lyapunov.Slice() }

// FractalHistory returns recent fractal-dimension estimates, oldest first.
func (s *System) FractalHistory() []float64 { return s.fractal.Slice() }

// Properties computes diagnostics plus variant-specific extras.
func (s *System) Properties() Properties {
	lyapunov := s.LyapunovExponent(DefaultLyapunov)
	fractal := s.FractalDimension(DefaultFractal)

	props := Properties{
		Kind:             s.v.kind,
		State:            s.state,
		TrajectoryLength: s.trajectory.Len(),
		LyapunovExponent: lyapunov,
		FractalDimension: fractal,
		IsChaotic:        lyapunov > 0,
		Parameters:       s.params.Clone(),
		Bounds:           s.v.bounds,
	}
	if s.v.extras != nil {
		props.Extras, props.Labels = s.v.extras(s.params, s.state)
	}
	return props
}

// GenerateSignal runs the variant's warm-up steps, then derives normalised
// components and a decision from the current state.
func (s *System) GenerateSignal() Signal {
	for i := 0; i < s.v.warmup; i++ {
		s.Evolve()
	}

	props := s.Properties()
	sig := Signal{
		Attractor:        s.v.kind,
		Timestamp:        s.now(),
		ChaosStrength:    props.LyapunovExponent,
		FractalDimension: props.FractalDimension,
		IsChaotic:        props.IsChaotic,
	}
	s.v.components(s.state, &sig)
	sig.Normalized = Components{
		Primary:      s.normalize(sig.Raw.Primary),
		Confirmation: s.normalize(sig.Raw.Confirmation),
		Momentum:     s.normalize(sig.Raw.Momentum),
		Timing:       s.normalize(sig.Raw.Timing),
		Volatility:   sig.Normalized.Volatility,
	}
	sig.Decision = s.v.decide(sig)
	return sig
}

func (s *System) normalize(v float64) float64 {
	return analysis.Clamp(v/s.v.divisor, -1, 1)
}

// Reset zeroes the state and clears every history.
func (s *System) Reset() {
	s.state = State{}
	s.trajectory.Reset()
	s.lyapunov.Reset()
	s.fractal.Reset()
}

// Clone returns an independent copy with the same variant, parameters and
// state. Histories are not copied.
func (s *System) Clone() *System {
	c := newSystem(s.v)
	c.params = s.params.Clone()
	c.setState(s.state)
	return c
}

func scale(s State, k float64) State {
	for i := range s {
		s[i] *= k
	}
	return s
}

func add(a, b State) State {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

func distance(a, b State) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

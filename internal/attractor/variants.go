package attractor

import (
	"math"
	"math/rand"

	"chaosalign/internal/models"
)

// variant is one closed entry of the attractor table.
type variant struct {
	kind     Kind
	defaults Parameters
	bounds   Bounds
	divisor  float64
	warmup   int

	derive     func(p Parameters, s State) State
	preset     func(name Preset, p Parameters) (State, bool)
	random     func(r *rand.Rand) State
	components func(s State, sig *Signal)
	decide     func(sig Signal) models.Decision
	extras     func(p Parameters, s State) (map[string]float64, map[string]string)
}

var variants = map[Kind]*variant{
	KindLorenz:  lorenz,
	KindChen:    chen,
	KindRossler: rossler,
}

// Lorenz: dx = σ(y−x), dy = x(ρ−z) − y, dz = xy − βz.
var lorenz = &variant{
	kind:     KindLorenz,
	defaults: Parameters{"sigma": 10, "rho": 28, "beta": 8.0 / 3.0},
	bounds:   Bounds{Min: -50, Max: 50},
	divisor:  30,
	warmup:   10,
	derive: func(p Parameters, s State) State {
		sigma, rho, beta := p["sigma"], p["rho"], p["beta"]
		x, y, z := s[0], s[1], s[2]
		return State{
			sigma * (y - x),
			x*(rho-z) - y,
			x*y - beta*z,
		}
	},
	preset: func(name Preset, p Parameters) (State, bool) {
		switch name {
		case PresetClassic:
			return State{1, 1, 1}, true
		case PresetSymmetric:
			return State{0, 1, 0}, true
		case PresetPeriodic:
			c := math.Sqrt(math.Max(0, p["beta"]*(p["rho"]-1)))
			return State{c, c, p["rho"] - 1}, true
		case PresetFixedPoint:
			return State{0, 0, 0}, true
		}
		return State{}, false
	},
	random: func(r *rand.Rand) State {
		return State{r.Float64()*2 - 1, r.Float64()*2 - 1, r.Float64()*2 - 1}
	},
	components: func(s State, sig *Signal) {
		sig.Raw = Components{Primary: s[0], Confirmation: s[2], Volatility: math.Abs(s[1])}
		sig.Normalized.Volatility = math.Min(1, math.Abs(s[1])/20)
	},
	decide: func(sig Signal) models.Decision {
		p, c, chaos := sig.Normalized.Primary, sig.Normalized.Confirmation, sig.ChaosStrength
		switch {
		case p > 0.3 && c > 0.2 && chaos > 0.5:
			return models.DecisionStrongBuy
		case p > 0.1 && c > 0:
			return models.DecisionBuy
		case p < -0.3 && c < -0.2 && chaos > 0.5:
			return models.DecisionStrongSell
		case p < -0.1 && c < 0:
			return models.DecisionSell
		}
		return models.DecisionHold
	},
	extras: func(p Parameters, s State) (map[string]float64, map[string]string) {
		wing := "lower"
		if s[2] > p["rho"]-1 {
			wing = "upper"
		}
		return map[string]float64{"convection_strength": math.Abs(s[0])},
			map[string]string{"wing_position": wing}
	},
}

// Chen: dx = a(y−x), dy = (c−a)x − xz + cy, dz = xy − bz.
var chen = &variant{
	kind:     KindChen,
	defaults: Parameters{"a": 5, "b": -10, "c": -0.38},
	bounds:   Bounds{Min: -100, Max: 100},
	divisor:  50,
	warmup:   15,
	derive: func(p Parameters, s State) State {
		a, b, c := p["a"], p["b"], p["c"]
		x, y, z := s[0], s[1], s[2]
		return State{
			a * (y - x),
			(c-a)*x - x*z + c*y,
			x*y - b*z,
		}
	},
	preset: func(name Preset, _ Parameters) (State, bool) {
		switch name {
		case PresetChaotic:
			return State{5, 10, 0.5}, true
		case PresetPeriodic:
			return State{1, 1, 1}, true
		case PresetStable:
			return State{0, 0, 0}, true
		case PresetHighEnergy:
			return State{20, -15, 5}, true
		}
		return State{}, false
	},
	random: func(r *rand.Rand) State {
		return State{(r.Float64() - 0.5) * 20, (r.Float64() - 0.5) * 20, (r.Float64() - 0.5) * 10}
	},
	components: func(s State, sig *Signal) {
		sig.Raw = Components{Primary: s[0] * s[1], Confirmation: s[2], Momentum: s[0] - s[1]}
	},
	decide: func(sig Signal) models.Decision {
		n, chaos := sig.Normalized, sig.ChaosStrength
		w := 0.4*n.Primary + 0.3*n.Confirmation + 0.3*n.Momentum
		switch {
		case w > 0.4 && chaos > 0.7 && n.Momentum > 0.2:
			return models.DecisionStrongBuy
		case w > 0.2 && n.Confirmation > 0.1:
			return models.DecisionBuy
		case w < -0.4 && chaos > 0.7 && n.Momentum < -0.2:
			return models.DecisionStrongSell
		case w < -0.2 && n.Confirmation < -0.1:
			return models.DecisionSell
		}
		return models.DecisionHold
	},
	extras: func(_ Parameters, s State) (map[string]float64, map[string]string) {
		x, y, z := s[0], s[1], s[2]
		return map[string]float64{
			"system_complexity":    math.Abs(x * y * z),
			"equilibrium_distance": math.Sqrt(x*x + y*y + z*z),
			"dynamic_range":        math.Max(math.Abs(x), math.Max(math.Abs(y), math.Abs(z))),
		}, nil
	},
}

// Rössler: dx = −y − z, dy = x + ay, dz = b + z(x − c).
var rossler = &variant{
	kind:     KindRossler,
	defaults: Parameters{"a": 0.2, "b": 0.2, "c": 5.7},
	bounds:   Bounds{Min: -50, Max: 50},
	divisor:  25,
	warmup:   12,
	derive: func(p Parameters, s State) State {
		a, b, c := p["a"], p["b"], p["c"]
		x, y, z := s[0], s[1], s[2]
		return State{
			-y - z,
			x + a*y,
			b + z*(x-c),
		}
	},
	preset: func(name Preset, _ Parameters) (State, bool) {
		switch name {
		case PresetChaotic:
			return State{1, 1, 1}, true
		case PresetPeriodic:
			return State{0.1, 0.1, 0.1}, true
		case PresetStable:
			return State{0, 0, 0}, true
		case PresetLargeSpiral:
			return State{10, 10, 10}, true
		}
		return State{}, false
	},
	random: func(r *rand.Rand) State {
		return State{(r.Float64() - 0.5) * 10, (r.Float64() - 0.5) * 10, (r.Float64() - 0.5) * 10}
	},
	components: func(s State, sig *Signal) {
		sig.Raw = Components{Primary: s[0], Timing: s[1], Momentum: s[2]}
		sig.SpiralPhase = math.Atan2(s[1], s[0])
		sig.SpiralRadius = math.Hypot(s[0], s[1])
	},
	decide: func(sig Signal) models.Decision {
		n, chaos, phase := sig.Normalized, sig.ChaosStrength, sig.SpiralPhase
		bullish := phase > 0 && phase < math.Pi
		bearish := phase < 0
		switch {
		case n.Primary > 0.3 && bullish && chaos > 0.6 && n.Momentum > 0.1:
			return models.DecisionStrongBuy
		case n.Primary > 0.1 && bullish && n.Timing > 0:
			return models.DecisionBuy
		case n.Primary < -0.3 && bearish && chaos > 0.6 && n.Momentum < -0.1:
			return models.DecisionStrongSell
		case n.Primary < -0.1 && bearish && n.Timing < 0:
			return models.DecisionSell
		}
		return models.DecisionHold
	},
	extras: func(p Parameters, s State) (map[string]float64, map[string]string) {
		return map[string]float64{
			"spiral_radius":      math.Hypot(s[0], s[1]),
			"spiral_phase":       math.Atan2(s[1], s[0]),
			"equilibrium_offset": p["b"],
			"chaos_threshold":    p["c"],
		}, nil
	},
}

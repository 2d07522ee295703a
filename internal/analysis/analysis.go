// Package analysis provides the numeric helpers shared by the attractor,
// fusion and impact packages: descriptive statistics, log-log regression,
// volatility and box-counting fractal dimension.
package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrLengthMismatch is returned when paired series differ in length.
	ErrLengthMismatch = errors.New("series length mismatch")
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopStdDev returns the population standard deviation, or 0 for fewer than
// two values.
func PopStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}

// Sum returns the sum of values.
func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// MaxValue returns the largest value, or 0 for an empty slice.
func MaxValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

// CoefficientOfVariation returns σ/μ using the population deviation.
// It returns fallback when there are fewer than two values or the mean is zero.
func CoefficientOfVariation(values []float64, fallback float64) float64 {
	if len(values) < 2 {
		return fallback
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return fallback
	}
	return std / mean
}

// LogReturns converts prices into log returns. Non-positive prices yield a zero return.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i] > 0 && prices[i-1] > 0 {
			out[i-1] = math.Log(prices[i] / prices[i-1])
		}
	}
	return out
}

// AnnualizedVolatility returns the population standard deviation of the log
// returns of prices scaled by √252. It returns fallback when fewer than two
// prices are given.
func AnnualizedVolatility(prices []float64, fallback float64) float64 {
	if len(prices) < 2 {
		return fallback
	}
	returns := LogReturns(prices)
	if len(returns) == 1 {
		return 0
	}
	_, std := stat.PopMeanStdDev(returns, nil)
	return std * math.Sqrt(TradingDaysPerYear)
}

// Slope returns the least-squares slope of y on x.
func Slope(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, ErrLengthMismatch
	}
	if len(x) < 2 {
		return 0, ErrInsufficientData
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, ErrInsufficientData
	}
	return beta, nil
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

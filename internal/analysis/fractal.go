package analysis

import (
	"math"
)

// DefaultBoxScales are the box sizes used for box-counting.
var DefaultBoxScales = []float64{2, 4, 8, 16, 32}

// Dimension bounds applied to every box-counting estimate.
const (
	MinFractalDimension = 1.0
	MaxFractalDimension = 2.0
)

// BoxDimension estimates a fractal dimension from the number of occupied boxes
// at each scale: the slope of log(count) against log(1/scale), clamped to
// [1, 2]. Degenerate inputs (empty boxes, a flat regression) return 1.
func BoxDimension(scales []float64, counts []int) float64 {
	if len(scales) != len(counts) || len(scales) < 2 {
		return MinFractalDimension
	}
	x := make([]float64, len(scales))
	y := make([]float64, len(scales))
	for i, s := range scales {
		if s <= 0 || counts[i] <= 0 {
			return MinFractalDimension
		}
		x[i] = math.Log(1 / s)
		y[i] = math.Log(float64(counts[i]))
	}
	slope, err := Slope(x, y)
	if err != nil {
		return MinFractalDimension
	}
	return Clamp(slope, MinFractalDimension, MaxFractalDimension)
}

// CountBoxes3 counts the distinct boxes of side scale occupied by points.
func CountBoxes3(points [][3]float64, scale float64) int {
	boxes := make(map[[3]int64]struct{}, len(points))
	for _, p := range points {
		key := [3]int64{
			int64(math.Floor(p[0] / scale)),
			int64(math.Floor(p[1] / scale)),
			int64(math.Floor(p[2] / scale)),
		}
		boxes[key] = struct{}{}
	}
	return len(boxes)
}

// PointDimension3 estimates the box-counting dimension of a 3-D point cloud.
func PointDimension3(points [][3]float64, scales []float64) float64 {
	if len(points) == 0 {
		return MinFractalDimension
	}
	counts := make([]int, len(scales))
	for i, s := range scales {
		counts[i] = CountBoxes3(points, s)
	}
	return BoxDimension(scales, counts)
}

// SeriesDimension estimates the dimension of a price series. For each scale it
// samples every scale-th value and counts the distinct floor(value/scale) boxes.
func SeriesDimension(values []float64, scales []float64) float64 {
	if len(values) == 0 {
		return MinFractalDimension
	}
	counts := make([]int, len(scales))
	for i, s := range scales {
		step := int(s)
		if step < 1 {
			step = 1
		}
		boxes := make(map[int64]struct{})
		for j := 0; j < len(values); j += step {
			boxes[int64(math.Floor(values[j]/s))] = struct{}{}
		}
		counts[i] = len(boxes)
	}
	return BoxDimension(scales, counts)
}

package utils

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomArray samples size values uniformly from ±1/sqrt(v), the usual
// fan-in scaled weight initialization.
func RandomArray(size int, v float64) []float64 {
	bound := 1.0 / math.Sqrt(v+1e-12)
	dist := distuv.Uniform{Min: -bound, Max: bound}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// Package ternary implements the BitNet-style weight codec: row-wise
// ternary quantization, the warp-tile element layout, and 2-bit packing
// of ternary codes into 32-bit words.
package ternary

import (
	"math"

	"github.com/23skdu/longbow-fletcher/internal/tensor"
)

// minScale bounds the per-row scale away from zero so an all-zero row
// quantizes to zero codes instead of propagating NaN.
const minScale = 1e-5

// QuantizeRows quantizes m row by row to codes in {-1, 0, 1} with one
// scale per row. The scale is the mean absolute value of the row; each
// element is divided by it, clamped to [-1, 1] and rounded half to even.
func QuantizeRows(m *tensor.Matrix) ([]int8, []float32) {
	codes := make([]int8, m.Rows*m.Cols)
	scales := make([]float32, m.Rows)

	for r := 0; r < m.Rows; r++ {
		row := m.Row(r)
		scales[r] = rowScale(row)
		inv := 1.0 / float64(scales[r])
		base := r * m.Cols
		for c, v := range row {
			q := math.RoundToEven(clamp(float64(v)*inv, -1, 1))
			codes[base+c] = int8(q)
		}
	}
	return codes, scales
}

func rowScale(row []float32) float32 {
	var sum float64
	for _, v := range row {
		sum += math.Abs(float64(v))
	}
	s := float32(sum / float64(len(row)))
	if s < minScale {
		s = minScale
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

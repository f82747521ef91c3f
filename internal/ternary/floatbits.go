package ternary

import "math"

// The persistence layer only carries float32 tensors, so packed words
// cross it bit-reinterpreted as IEEE-754 patterns. This is a bit copy,
// never a numeric conversion: patterns that decode as NaN or subnormal
// floats must survive a round trip unchanged.

// WordsToFloats reinterprets packed words as float32 bit patterns.
func WordsToFloats(words []uint32) []float32 {
	out := make([]float32, len(words))
	for i, w := range words {
		out[i] = math.Float32frombits(w)
	}
	return out
}

// FloatsToWords is the inverse reinterpretation.
func FloatsToWords(floats []float32) []uint32 {
	out := make([]uint32, len(floats))
	for i, f := range floats {
		out[i] = math.Float32bits(f)
	}
	return out
}

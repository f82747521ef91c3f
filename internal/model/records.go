// Package model maps a named GGUF tensor collection onto the per-layer
// record structure the bitnet runtime loads, running each linear weight
// through the ternary codec on the way.
package model

import "github.com/23skdu/longbow-fletcher/internal/tensor"

// BitLinear is one projection layer in packed ternary form: row-aligned
// 2-bit words plus one dequantization scale per output row.
type BitLinear struct {
	Rows   int
	Cols   int
	Packed []uint32
	Scales []float32
}

// RMSNorm is a norm gain vector, stored as plain floats.
type RMSNorm struct {
	Weight []float32
}

// Embedding is a dense float matrix that bypasses quantization
// (token embedding and output head).
type Embedding struct {
	Weight *tensor.Matrix
}

// Block is one transformer layer. Q/K/V arrive fused row-wise into a
// single projection, as do gate and up.
type Block struct {
	AttnQKV    BitLinear
	AttnOutput BitLinear
	FFNGateUp  BitLinear
	FFNDown    BitLinear
	AttnNorm   RMSNorm
	FFNNorm    RMSNorm
}

// Model is the full converted record set, blocks ordered by source
// layer index with no gaps.
type Model struct {
	TokenEmbedding Embedding
	Blocks         []Block
	OutputNorm     RMSNorm
	OutputHead     Embedding
}

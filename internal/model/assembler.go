package model

import (
	"fmt"
	"time"

	"github.com/23skdu/longbow-fletcher/internal/logger"
	"github.com/23skdu/longbow-fletcher/internal/metrics"
	"github.com/23skdu/longbow-fletcher/internal/tensor"
	"github.com/23skdu/longbow-fletcher/internal/ternary"
)

// Tensor naming follows the GGUF llama convention.
const (
	TensorTokenEmbedding = "token_embd.weight"
	TensorOutputNorm     = "output_norm.weight"
	TensorOutputHead     = "output.weight"
	TensorOutputHeadAlt  = "model.lm_head.weight"
)

func layerTensor(layer int, suffix string) string {
	return fmt.Sprintf("blk.%d.%s.weight", layer, suffix)
}

// Assembler builds the converted Model from a fully materialized tensor
// map. Any required tensor missing from the map is a fatal error that
// names the key; there is no partial assembly.
type Assembler struct {
	tensors    map[string]*tensor.Matrix
	layers     int
	tileLayout bool
}

func NewAssembler(tensors map[string]*tensor.Matrix, layers int, tileLayout bool) *Assembler {
	return &Assembler{
		tensors:    tensors,
		layers:     layers,
		tileLayout: tileLayout,
	}
}

func (a *Assembler) Assemble() (*Model, error) {
	emb, err := a.require(TensorTokenEmbedding)
	if err != nil {
		return nil, err
	}
	outNorm, err := a.requireVector(TensorOutputNorm)
	if err != nil {
		return nil, err
	}
	head, ok := a.tensors[TensorOutputHead]
	if !ok {
		if head, ok = a.tensors[TensorOutputHeadAlt]; !ok {
			return nil, fmt.Errorf("required tensor missing: %s (or %s)", TensorOutputHead, TensorOutputHeadAlt)
		}
	}

	m := &Model{
		TokenEmbedding: Embedding{Weight: emb},
		Blocks:         make([]Block, 0, a.layers),
		OutputNorm:     RMSNorm{Weight: outNorm},
		OutputHead:     Embedding{Weight: head},
	}

	for i := 0; i < a.layers; i++ {
		blk, err := a.assembleBlock(i)
		if err != nil {
			return nil, err
		}
		m.Blocks = append(m.Blocks, blk)
		logger.Log.Info("assembled block", "layer", i)
	}
	return m, nil
}

func (a *Assembler) assembleBlock(layer int) (Block, error) {
	var blk Block

	q, err := a.require(layerTensor(layer, "attn_q"))
	if err != nil {
		return blk, err
	}
	k, err := a.require(layerTensor(layer, "attn_k"))
	if err != nil {
		return blk, err
	}
	v, err := a.require(layerTensor(layer, "attn_v"))
	if err != nil {
		return blk, err
	}
	attnOut, err := a.require(layerTensor(layer, "attn_output"))
	if err != nil {
		return blk, err
	}
	gate, err := a.require(layerTensor(layer, "ffn_gate"))
	if err != nil {
		return blk, err
	}
	up, err := a.require(layerTensor(layer, "ffn_up"))
	if err != nil {
		return blk, err
	}
	down, err := a.require(layerTensor(layer, "ffn_down"))
	if err != nil {
		return blk, err
	}
	attnNorm, err := a.requireVector(layerTensor(layer, "attn_norm"))
	if err != nil {
		return blk, err
	}
	ffnNorm, err := a.requireVector(layerTensor(layer, "ffn_norm"))
	if err != nil {
		return blk, err
	}

	qkv, err := tensor.ConcatRows(q, k, v)
	if err != nil {
		return blk, fmt.Errorf("layer %d: fuse qkv: %w", layer, err)
	}
	gateUp, err := tensor.ConcatRows(gate, up)
	if err != nil {
		return blk, fmt.Errorf("layer %d: fuse gate+up: %w", layer, err)
	}

	blk.AttnQKV = a.quantize(qkv)
	blk.AttnOutput = a.quantize(attnOut)
	blk.FFNGateUp = a.quantize(gateUp)
	blk.FFNDown = a.quantize(down)
	blk.AttnNorm = RMSNorm{Weight: attnNorm}
	blk.FFNNorm = RMSNorm{Weight: ffnNorm}
	return blk, nil
}

// quantize runs one weight matrix through the codec: ternary codes and
// row scales, the optional warp-tile shuffle, then row-aligned packing.
func (a *Assembler) quantize(m *tensor.Matrix) BitLinear {
	start := time.Now()
	codes, scales := ternary.QuantizeRows(m)
	if a.tileLayout {
		codes = ternary.TileLayout(codes, m.Rows, m.Cols)
	}
	packed := ternary.PackMatrix(codes, m.Rows, m.Cols)
	metrics.RecordQuantize(len(packed), time.Since(start))
	return BitLinear{
		Rows:   m.Rows,
		Cols:   m.Cols,
		Packed: packed,
		Scales: scales,
	}
}

func (a *Assembler) require(name string) (*tensor.Matrix, error) {
	m, ok := a.tensors[name]
	if !ok {
		return nil, fmt.Errorf("required tensor missing: %s", name)
	}
	return m, nil
}

// requireVector fetches a 1-D tensor, squeezing the singleton dimension
// GGUF readers sometimes leave on norm weights ([1,N] or [N,1]).
func (a *Assembler) requireVector(name string) ([]float32, error) {
	m, err := a.require(name)
	if err != nil {
		return nil, err
	}
	vec, err := tensor.SqueezeVector(m)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return vec, nil
}

package model

import (
	"fmt"
	"strings"
	"testing"

	"github.com/23skdu/longbow-fletcher/internal/tensor"
	"github.com/23skdu/longbow-fletcher/internal/ternary"
)

func constMatrix(rows, cols int, v float32) *tensor.Matrix {
	m := tensor.New(rows, cols)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// fullTensorMap builds a complete tensor set for the given layer count:
// dim columns everywhere, heads rows for K/V, hidden rows for gate/up.
func fullTensorMap(layers, dim, kvDim, hidden, vocab int) map[string]*tensor.Matrix {
	ts := map[string]*tensor.Matrix{
		TensorTokenEmbedding: constMatrix(vocab, dim, 0.25),
		TensorOutputNorm:     constMatrix(1, dim, 1),
		TensorOutputHead:     constMatrix(vocab, dim, 0.5),
	}
	for i := 0; i < layers; i++ {
		key := func(s string) string { return fmt.Sprintf("blk.%d.%s.weight", i, s) }
		ts[key("attn_q")] = constMatrix(dim, dim, 1)
		ts[key("attn_k")] = constMatrix(kvDim, dim, -1)
		ts[key("attn_v")] = constMatrix(kvDim, dim, 2)
		ts[key("attn_output")] = constMatrix(dim, dim, 1)
		ts[key("ffn_gate")] = constMatrix(hidden, dim, 1)
		ts[key("ffn_up")] = constMatrix(hidden, dim, -2)
		ts[key("ffn_down")] = constMatrix(dim, hidden, 1)
		ts[key("attn_norm")] = constMatrix(1, dim, 1)
		ts[key("ffn_norm")] = constMatrix(dim, 1, 1)
	}
	return ts
}

func TestAssembleComplete(t *testing.T) {
	const (
		layers = 3
		dim    = 32
		kvDim  = 16
		hidden = 64
		vocab  = 10
	)
	a := NewAssembler(fullTensorMap(layers, dim, kvDim, hidden, vocab), layers, false)
	m, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if len(m.Blocks) != layers {
		t.Fatalf("expected %d blocks, got %d", layers, len(m.Blocks))
	}
	if m.TokenEmbedding.Weight.Rows != vocab || m.TokenEmbedding.Weight.Cols != dim {
		t.Errorf("embedding shape = %dx%d", m.TokenEmbedding.Weight.Rows, m.TokenEmbedding.Weight.Cols)
	}
	if len(m.OutputNorm.Weight) != dim {
		t.Errorf("output norm length = %d, want %d", len(m.OutputNorm.Weight), dim)
	}
	if m.OutputHead.Weight.Rows != vocab {
		t.Errorf("output head rows = %d, want %d", m.OutputHead.Weight.Rows, vocab)
	}

	for i, blk := range m.Blocks {
		// QKV fuses q (dim rows) with k and v (kvDim rows each).
		wantQKV := dim + 2*kvDim
		if blk.AttnQKV.Rows != wantQKV || blk.AttnQKV.Cols != dim {
			t.Errorf("block %d: qkv shape = %dx%d, want %dx%d", i, blk.AttnQKV.Rows, blk.AttnQKV.Cols, wantQKV, dim)
		}
		if blk.FFNGateUp.Rows != 2*hidden || blk.FFNGateUp.Cols != dim {
			t.Errorf("block %d: gate+up shape = %dx%d, want %dx%d", i, blk.FFNGateUp.Rows, blk.FFNGateUp.Cols, 2*hidden, dim)
		}
		if blk.FFNDown.Rows != dim || blk.FFNDown.Cols != hidden {
			t.Errorf("block %d: down shape = %dx%d", i, blk.FFNDown.Rows, blk.FFNDown.Cols)
		}
		if len(blk.AttnNorm.Weight) != dim || len(blk.FFNNorm.Weight) != dim {
			t.Errorf("block %d: norm lengths = %d/%d, want %d", i, len(blk.AttnNorm.Weight), len(blk.FFNNorm.Weight), dim)
		}
		if wantWords := blk.AttnQKV.Rows * ternary.PackedLen(dim); len(blk.AttnQKV.Packed) != wantWords {
			t.Errorf("block %d: qkv packed words = %d, want %d", i, len(blk.AttnQKV.Packed), wantWords)
		}
		if len(blk.AttnQKV.Scales) != blk.AttnQKV.Rows {
			t.Errorf("block %d: qkv scales = %d, want %d", i, len(blk.AttnQKV.Scales), blk.AttnQKV.Rows)
		}
	}
}

func TestAssembleQKVFusionOrder(t *testing.T) {
	// One layer, tiny shapes, distinct constant rows so unpacked codes
	// reveal the q-then-k-then-v stacking.
	ts := fullTensorMap(1, 16, 16, 16, 4)
	key := func(s string) string { return fmt.Sprintf("blk.0.%s.weight", s) }
	ts[key("attn_q")] = constMatrix(1, 16, 1)
	ts[key("attn_k")] = constMatrix(1, 16, -1)
	ts[key("attn_v")] = constMatrix(1, 16, 0)

	a := NewAssembler(ts, 1, false)
	m, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	qkv := m.Blocks[0].AttnQKV
	if qkv.Rows != 3 {
		t.Fatalf("qkv rows = %d, want 3", qkv.Rows)
	}
	codes := ternary.UnpackMatrix(qkv.Packed, qkv.Rows, qkv.Cols)
	wantRow := []int8{1, -1, 0}
	for r := 0; r < 3; r++ {
		for c := 0; c < 16; c++ {
			if codes[r*16+c] != wantRow[r] {
				t.Fatalf("row %d col %d: code = %d, want %d", r, c, codes[r*16+c], wantRow[r])
			}
		}
	}
}

func TestAssembleMissingTensor(t *testing.T) {
	ts := fullTensorMap(2, 16, 16, 32, 4)
	delete(ts, "blk.1.ffn_gate.weight")

	a := NewAssembler(ts, 2, false)
	_, err := a.Assemble()
	if err == nil {
		t.Fatal("expected error for missing tensor")
	}
	if !strings.Contains(err.Error(), "blk.1.ffn_gate.weight") {
		t.Errorf("error should name the missing key, got: %v", err)
	}
}

func TestAssembleMissingOutputHead(t *testing.T) {
	ts := fullTensorMap(1, 16, 16, 32, 4)
	delete(ts, TensorOutputHead)

	a := NewAssembler(ts, 1, false)
	if _, err := a.Assemble(); err == nil {
		t.Fatal("expected error when both head names are absent")
	}

	// The alternate lm_head name must satisfy the requirement.
	ts[TensorOutputHeadAlt] = constMatrix(4, 16, 0.5)
	a = NewAssembler(ts, 1, false)
	m, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble with alt head name failed: %v", err)
	}
	if m.OutputHead.Weight.Rows != 4 {
		t.Errorf("output head rows = %d, want 4", m.OutputHead.Weight.Rows)
	}
}

func TestAssembleNormSqueeze(t *testing.T) {
	// Norms arrive as [1,N] and [N,1]; both squeeze to [N] preserving order.
	ts := fullTensorMap(1, 8, 8, 16, 4)
	rowNorm := tensor.New(1, 8)
	colNorm := tensor.New(8, 1)
	for i := 0; i < 8; i++ {
		rowNorm.Data[i] = float32(i)
		colNorm.Data[i] = float32(7 - i)
	}
	ts["blk.0.attn_norm.weight"] = rowNorm
	ts["blk.0.ffn_norm.weight"] = colNorm

	a := NewAssembler(ts, 1, false)
	m, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	blk := m.Blocks[0]
	for i := 0; i < 8; i++ {
		if blk.AttnNorm.Weight[i] != float32(i) {
			t.Errorf("attn norm[%d] = %v, want %d", i, blk.AttnNorm.Weight[i], i)
		}
		if blk.FFNNorm.Weight[i] != float32(7-i) {
			t.Errorf("ffn norm[%d] = %v, want %d", i, blk.FFNNorm.Weight[i], 7-i)
		}
	}
}

func TestAssembleTileLayoutChangesPacking(t *testing.T) {
	// With the warp-tile shuffle on, packed words differ from the linear
	// layout for any matrix whose rows are not tile-uniform.
	ts := fullTensorMap(1, 32, 16, 32, 4)
	key := "blk.0.attn_output.weight"
	m := tensor.New(32, 32)
	for i := range m.Data {
		if i%3 == 0 {
			m.Data[i] = 1
		} else {
			m.Data[i] = -1
		}
	}
	ts[key] = m

	plain, err := NewAssembler(ts, 1, false).Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	tiled, err := NewAssembler(ts, 1, true).Assemble()
	if err != nil {
		t.Fatalf("Assemble (tiled) failed: %v", err)
	}

	a, b := plain.Blocks[0].AttnOutput, tiled.Blocks[0].AttnOutput
	if len(a.Packed) != len(b.Packed) {
		t.Fatalf("packed length mismatch: %d vs %d", len(a.Packed), len(b.Packed))
	}
	same := true
	for i := range a.Packed {
		if a.Packed[i] != b.Packed[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("tile layout produced identical packing to linear layout")
	}

	// Scales are computed before the shuffle and must match.
	for i := range a.Scales {
		if a.Scales[i] != b.Scales[i] {
			t.Fatalf("scale %d differs: %v vs %v", i, a.Scales[i], b.Scales[i])
		}
	}
}

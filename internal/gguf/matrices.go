package gguf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/23skdu/longbow-fletcher/internal/logger"
	"github.com/23skdu/longbow-fletcher/internal/metrics"
	"github.com/23skdu/longbow-fletcher/internal/tensor"
)

// Matrices materializes every convertible tensor as a row-major float32
// matrix, keyed by tensor name. Only F32 tensors of rank 1 or 2 are
// convertible; anything else is skipped with a warning, never an error.
// Missing *required* names are the assembler's problem, not ours.
func (f *GGUFFile) Matrices() map[string]*tensor.Matrix {
	out := make(map[string]*tensor.Matrix, len(f.Tensors))
	for _, t := range f.Tensors {
		m, err := matrixFromTensor(t)
		if err != nil {
			logger.Log.Warn("skipping tensor", "name", t.Name, "type", t.Type.String(),
				"dims", t.Dimensions, "reason", err.Error())
			continue
		}
		out[t.Name] = m
	}
	return out
}

func matrixFromTensor(t *TensorInfo) (*tensor.Matrix, error) {
	if t.Type != GGMLTypeF32 {
		metrics.RecordSkip("dtype")
		return nil, fmt.Errorf("unsupported dtype %s", t.Type)
	}
	if len(t.Dimensions) < 1 || len(t.Dimensions) > 2 {
		metrics.RecordSkip("rank")
		return nil, fmt.Errorf("unsupported rank %d", len(t.Dimensions))
	}

	// GGUF stores ne[0] as the contiguous dimension: columns.
	cols := int(t.Dimensions[0])
	rows := 1
	if len(t.Dimensions) == 2 {
		rows = int(t.Dimensions[1])
	}

	n := rows * cols
	if len(t.Data) < n*4 {
		return nil, fmt.Errorf("tensor data truncated: have %d bytes, need %d", len(t.Data), n*4)
	}

	data := make([]float32, n)
	for i := 0; i < n; i++ {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
	}
	return tensor.FromSlice(rows, cols, data)
}

package arrowio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-fletcher/internal/model"
	"github.com/23skdu/longbow-fletcher/internal/tensor"
	"github.com/23skdu/longbow-fletcher/internal/ternary"
)

// ReadComponent reads all tensor rows from an IPC stream file.
func ReadComponent(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := ipc.NewReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Release()

	var out []Row
	for r.Next() {
		rec := r.Record()
		names := rec.Column(0).(*array.String)
		kinds := rec.Column(1).(*array.String)
		rows := rec.Column(2).(*array.Int64)
		cols := rec.Column(3).(*array.Int64)
		lists := rec.Column(4).(*array.List)
		values := lists.ListValues().(*array.Float32)

		for i := 0; i < int(rec.NumRows()); i++ {
			start, end := lists.ValueOffsets(i)
			data := make([]float32, end-start)
			copy(data, values.Float32Values()[start:end])
			out = append(out, Row{
				Name: names.Value(i),
				Kind: kinds.Value(i),
				Rows: int(rows.Value(i)),
				Cols: int(cols.Value(i)),
				Data: data,
			})
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// ReadModel loads a model written by WriteModel. layers must match the
// block count the writer used.
func ReadModel(dir string, layers int) (*model.Model, error) {
	m := &model.Model{Blocks: make([]model.Block, 0, layers)}

	embRows, err := ReadComponent(filepath.Join(dir, FileTokenEmbedding))
	if err != nil {
		return nil, err
	}
	emb, err := findMatrix(embRows, "token_embd")
	if err != nil {
		return nil, err
	}
	m.TokenEmbedding = model.Embedding{Weight: emb}

	for i := 0; i < layers; i++ {
		rows, err := ReadComponent(filepath.Join(dir, BlockFile(i)))
		if err != nil {
			return nil, err
		}
		blk, err := blockFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		m.Blocks = append(m.Blocks, blk)
	}

	normRows, err := ReadComponent(filepath.Join(dir, FileOutputNorm))
	if err != nil {
		return nil, err
	}
	norm, err := findRow(normRows, "output_norm")
	if err != nil {
		return nil, err
	}
	m.OutputNorm = model.RMSNorm{Weight: norm.Data}

	headRows, err := ReadComponent(filepath.Join(dir, FileOutputHead))
	if err != nil {
		return nil, err
	}
	head, err := findMatrix(headRows, "output")
	if err != nil {
		return nil, err
	}
	m.OutputHead = model.Embedding{Weight: head}

	return m, nil
}

func blockFromRows(rows []Row) (model.Block, error) {
	var blk model.Block
	var err error

	if blk.AttnQKV, err = findBitLinear(rows, "attn_qkv"); err != nil {
		return blk, err
	}
	if blk.AttnOutput, err = findBitLinear(rows, "attn_output"); err != nil {
		return blk, err
	}
	if blk.FFNGateUp, err = findBitLinear(rows, "ffn_gate_up"); err != nil {
		return blk, err
	}
	if blk.FFNDown, err = findBitLinear(rows, "ffn_down"); err != nil {
		return blk, err
	}

	attnNorm, err := findRow(rows, "attn_norm")
	if err != nil {
		return blk, err
	}
	blk.AttnNorm = model.RMSNorm{Weight: attnNorm.Data}

	ffnNorm, err := findRow(rows, "ffn_norm")
	if err != nil {
		return blk, err
	}
	blk.FFNNorm = model.RMSNorm{Weight: ffnNorm.Data}
	return blk, nil
}

func findRow(rows []Row, name string) (Row, error) {
	for _, r := range rows {
		if r.Name == name {
			return r, nil
		}
	}
	return Row{}, fmt.Errorf("tensor row %q not found", name)
}

func findMatrix(rows []Row, name string) (*tensor.Matrix, error) {
	r, err := findRow(rows, name)
	if err != nil {
		return nil, err
	}
	return tensor.FromSlice(r.Rows, r.Cols, r.Data)
}

func findBitLinear(rows []Row, name string) (model.BitLinear, error) {
	packed, err := findRow(rows, name+".packed")
	if err != nil {
		return model.BitLinear{}, err
	}
	scales, err := findRow(rows, name+".scales")
	if err != nil {
		return model.BitLinear{}, err
	}
	if want := packed.Rows * ternary.PackedLen(packed.Cols); len(packed.Data) != want {
		return model.BitLinear{}, fmt.Errorf("%s: packed length %d, want %d for %dx%d",
			packed.Name, len(packed.Data), want, packed.Rows, packed.Cols)
	}
	if len(scales.Data) != packed.Rows {
		return model.BitLinear{}, fmt.Errorf("%s: %d scales for %d rows", scales.Name, len(scales.Data), packed.Rows)
	}
	return model.BitLinear{
		Rows:   packed.Rows,
		Cols:   packed.Cols,
		Packed: ternary.FloatsToWords(packed.Data),
		Scales: scales.Data,
	}, nil
}

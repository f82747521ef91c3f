package arrowio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-fletcher/internal/logger"
	"github.com/23skdu/longbow-fletcher/internal/metrics"
	"github.com/23skdu/longbow-fletcher/internal/model"
	"github.com/23skdu/longbow-fletcher/internal/ternary"
)

// Component file names. Block files are blk.<i>.arrow.
const (
	FileTokenEmbedding = "token_embd.arrow"
	FileOutputNorm     = "output_norm.arrow"
	FileOutputHead     = "output.arrow"
)

// BlockFile returns the file name for layer i.
func BlockFile(i int) string {
	return fmt.Sprintf("blk.%d.arrow", i)
}

// NewRecord builds a single record batch holding every row. The caller
// must Release it.
func NewRecord(rows []Row) arrow.Record {
	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema())
	defer b.Release()

	nameB := b.Field(0).(*array.StringBuilder)
	kindB := b.Field(1).(*array.StringBuilder)
	rowsB := b.Field(2).(*array.Int64Builder)
	colsB := b.Field(3).(*array.Int64Builder)
	listB := b.Field(4).(*array.ListBuilder)
	dataB := listB.ValueBuilder().(*array.Float32Builder)

	for _, r := range rows {
		nameB.Append(r.Name)
		kindB.Append(r.Kind)
		rowsB.Append(int64(r.Rows))
		colsB.Append(int64(r.Cols))
		listB.Append(true)
		dataB.AppendValues(r.Data, nil)
	}
	return b.NewRecord()
}

// WriteComponent writes rows to path as a single-batch IPC stream.
func WriteComponent(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rec := NewRecord(rows)
	defer rec.Release()

	w := ipc.NewWriter(f, ipc.WithSchema(Schema()))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	info, err := f.Stat()
	if err == nil {
		metrics.RecordComponentWritten(info.Size())
	}
	logger.Log.Debug("wrote component", "path", path, "tensors", len(rows))
	return nil
}

// Component is one output file worth of tensor rows.
type Component struct {
	File string
	Rows []Row
}

// ModelComponents splits m into its component files in write order.
func ModelComponents(m *model.Model) []Component {
	emb := m.TokenEmbedding.Weight
	head := m.OutputHead.Weight

	out := make([]Component, 0, len(m.Blocks)+3)
	out = append(out, Component{
		File: FileTokenEmbedding,
		Rows: []Row{{Name: "token_embd", Kind: KindFloat, Rows: emb.Rows, Cols: emb.Cols, Data: emb.Data}},
	})
	for i, blk := range m.Blocks {
		rows := make([]Row, 0, 10)
		rows = append(rows, bitLinearRows("attn_qkv", blk.AttnQKV)...)
		rows = append(rows, bitLinearRows("attn_output", blk.AttnOutput)...)
		rows = append(rows, bitLinearRows("ffn_gate_up", blk.FFNGateUp)...)
		rows = append(rows, bitLinearRows("ffn_down", blk.FFNDown)...)
		rows = append(rows, vectorRow("attn_norm", blk.AttnNorm.Weight))
		rows = append(rows, vectorRow("ffn_norm", blk.FFNNorm.Weight))
		out = append(out, Component{File: BlockFile(i), Rows: rows})
	}
	out = append(out, Component{
		File: FileOutputNorm,
		Rows: []Row{vectorRow("output_norm", m.OutputNorm.Weight)},
	})
	out = append(out, Component{
		File: FileOutputHead,
		Rows: []Row{{Name: "output", Kind: KindFloat, Rows: head.Rows, Cols: head.Cols, Data: head.Data}},
	})
	return out
}

// WriteModel writes every component of m under dir.
func WriteModel(dir string, m *model.Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, c := range ModelComponents(m) {
		if err := WriteComponent(filepath.Join(dir, c.File), c.Rows); err != nil {
			return err
		}
	}
	return nil
}

// bitLinearRows emits the packed-word row and its scale row. The words
// cross into float32 space by bit reinterpretation only.
func bitLinearRows(name string, bl model.BitLinear) []Row {
	return []Row{
		{
			Name: name + ".packed",
			Kind: KindPacked,
			Rows: bl.Rows,
			Cols: bl.Cols,
			Data: ternary.WordsToFloats(bl.Packed),
		},
		{
			Name: name + ".scales",
			Kind: KindScales,
			Rows: bl.Rows,
			Cols: 1,
			Data: bl.Scales,
		},
	}
}

func vectorRow(name string, w []float32) Row {
	return Row{Name: name, Kind: KindFloat, Rows: len(w), Cols: 1, Data: w}
}

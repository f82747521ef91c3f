// Package arrowio persists converted models as Arrow IPC streams, one
// file per structural component. Packed ternary words travel in float32
// columns via bit reinterpretation; Arrow buffers are copied verbatim,
// so every bit pattern survives the round trip.
package arrowio

import "github.com/apache/arrow-go/v18/arrow"

// Row kinds. Packed rows carry 2-bit words reinterpreted as float32,
// scales and float rows carry ordinary numeric data.
const (
	KindPacked = "packed"
	KindScales = "scales"
	KindFloat  = "float"
)

// Row is one named tensor inside a component file. Rows and Cols are
// the logical matrix shape, not the length of Data: for packed rows
// Data holds Rows*ceil(Cols/16) reinterpreted words.
type Row struct {
	Name string
	Kind string
	Rows int
	Cols int
	Data []float32
}

// Schema returns the component file schema.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "tensor", Type: arrow.BinaryTypes.String},
		{Name: "kind", Type: arrow.BinaryTypes.String},
		{Name: "rows", Type: arrow.PrimitiveTypes.Int64},
		{Name: "cols", Type: arrow.PrimitiveTypes.Int64},
		{Name: "data", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
	}, nil)
}

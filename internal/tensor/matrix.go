package tensor

import "fmt"

// Matrix is a row-major float32 matrix backed by a flat buffer.
// It is the only numeric container the converter uses: fixed-shape
// array math here never needs a tensor framework.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

func New(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// FromSlice wraps an existing flat buffer. The buffer is not copied.
func FromSlice(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid shape (%d, %d)", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("buffer length %d does not match shape (%d, %d)", len(data), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Row returns a view of row i. The slice aliases the matrix buffer.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

func (m *Matrix) NumElements() int {
	return m.Rows * m.Cols
}

// ConcatRows stacks matrices vertically in argument order. All inputs
// must share the same column count.
func ConcatRows(ms ...*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("concat of zero matrices")
	}
	cols := ms[0].Cols
	rows := 0
	for _, m := range ms {
		if m.Cols != cols {
			return nil, fmt.Errorf("concat column mismatch: %d vs %d", m.Cols, cols)
		}
		rows += m.Rows
	}
	out := &Matrix{Rows: rows, Cols: cols, Data: make([]float32, 0, rows*cols)}
	for _, m := range ms {
		out.Data = append(out.Data, m.Data...)
	}
	return out, nil
}

// SqueezeVector reduces a [1,N] or [N,1] matrix to its flat N-element
// buffer. A matrix that is already one-dimensional in either shape is
// returned as-is; anything genuinely 2-D is an error.
func SqueezeVector(m *Matrix) ([]float32, error) {
	switch {
	case m.Rows == 1:
		return m.Data, nil
	case m.Cols == 1:
		return m.Data, nil
	default:
		return nil, fmt.Errorf("cannot squeeze shape (%d, %d) to a vector", m.Rows, m.Cols)
	}
}

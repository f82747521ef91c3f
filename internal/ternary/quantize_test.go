package ternary

import (
	"math"
	"math/rand"
	"testing"

	"github.com/23skdu/longbow-fletcher/internal/tensor"
)

func TestQuantizeRowsRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := tensor.New(13, 37)
	for i := range m.Data {
		m.Data[i] = float32(rng.NormFloat64() * 3)
	}

	codes, scales := QuantizeRows(m)
	if len(scales) != m.Rows {
		t.Fatalf("expected %d scales, got %d", m.Rows, len(scales))
	}
	if len(codes) != m.NumElements() {
		t.Fatalf("expected %d codes, got %d", m.NumElements(), len(codes))
	}
	for i, c := range codes {
		if c < -1 || c > 1 {
			t.Fatalf("code %d out of ternary range at index %d", c, i)
		}
	}
}

func TestQuantizeRowsScaleIsMeanAbs(t *testing.T) {
	m, err := tensor.FromSlice(1, 4, []float32{1, -2, 3, -4})
	if err != nil {
		t.Fatal(err)
	}
	_, scales := QuantizeRows(m)
	if got, want := scales[0], float32(2.5); got != want {
		t.Errorf("expected scale %v, got %v", want, got)
	}
}

func TestQuantizeRowsZeroRow(t *testing.T) {
	m := tensor.New(2, 8)
	for c := 0; c < 8; c++ {
		m.Data[8+c] = float32(c) - 3.5
	}

	codes, scales := QuantizeRows(m)
	for r, s := range scales {
		if math.IsNaN(float64(s)) || s <= 0 {
			t.Errorf("row %d: scale %v is not a positive finite value", r, s)
		}
	}
	for c := 0; c < 8; c++ {
		if codes[c] != 0 {
			t.Errorf("zero row produced code %d at col %d", codes[c], c)
		}
	}
}

// Normalized values landing exactly on +-0.5 round half to even: both go
// to zero. The rule is part of the format and must not drift.
func TestQuantizeRowsHalfwayRoundsToEven(t *testing.T) {
	m, err := tensor.FromSlice(1, 2, []float32{1, 3}) // scale 2, normalized 0.5 and 1.5
	if err != nil {
		t.Fatal(err)
	}
	codes, _ := QuantizeRows(m)
	if codes[0] != 0 {
		t.Errorf("expected 0.5 to round to 0, got %d", codes[0])
	}
	if codes[1] != 1 {
		t.Errorf("expected clamp to 1 for 1.5, got %d", codes[1])
	}

	m, err = tensor.FromSlice(1, 2, []float32{-1, 3})
	if err != nil {
		t.Fatal(err)
	}
	codes, _ = QuantizeRows(m)
	if codes[0] != 0 {
		t.Errorf("expected -0.5 to round to 0, got %d", codes[0])
	}
}

func TestQuantizePackUnpackEndToEnd(t *testing.T) {
	// 32x64 uniform in [-1,1]: the packed stream must reproduce the
	// quantized codes exactly after unpack and truncation.
	rng := rand.New(rand.NewSource(42))
	m := tensor.New(32, 64)
	for i := range m.Data {
		m.Data[i] = float32(rng.Float64()*2 - 1)
	}

	codes, _ := QuantizeRows(m)
	words := Pack(codes)
	back := Unpack(words, len(codes))

	if len(back) != 2048 {
		t.Fatalf("expected 2048 codes, got %d", len(back))
	}
	for i := range codes {
		if codes[i] != back[i] {
			t.Fatalf("code mismatch at %d: %d != %d", i, codes[i], back[i])
		}
	}
}

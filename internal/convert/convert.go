// Package convert drives a whole model conversion: parse the source
// file, assemble and quantize the record set, persist it, then verify
// the written components bit for bit.
package convert

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/23skdu/longbow-fletcher/internal/arrowio"
	"github.com/23skdu/longbow-fletcher/internal/config"
	"github.com/23skdu/longbow-fletcher/internal/flightpub"
	"github.com/23skdu/longbow-fletcher/internal/gguf"
	"github.com/23skdu/longbow-fletcher/internal/logger"
	"github.com/23skdu/longbow-fletcher/internal/metrics"
	"github.com/23skdu/longbow-fletcher/internal/model"
)

// Options control one conversion run.
type Options struct {
	InputPath  string
	OutputDir  string
	TileLayout bool
	Verify     bool

	// Publisher, when set, receives every component after the local
	// write succeeds.
	Publisher flightpub.Publisher
}

// Result summarizes a finished conversion.
type Result struct {
	Config   config.Config
	Layers   int
	Tensors  int
	Duration time.Duration
}

// Run executes the conversion described by opts.
func Run(ctx context.Context, opts Options) (res Result, err error) {
	start := time.Now()

	// The codec and assembler index slices by trusted shapes; a corrupt
	// source file must surface as an error, not a crash.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion panicked: %v", r)
		}
	}()

	f, err := gguf.LoadFile(opts.InputPath)
	if err != nil {
		return res, fmt.Errorf("loading %s: %w", opts.InputPath, err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := config.FromMetadata(f.KV)
	if err != nil {
		return res, err
	}
	cfg.TileLayout = opts.TileLayout
	logger.Log.Info("source model",
		"architecture", cfg.GetArchitecture(),
		"layers", cfg.Layers,
		"dim", cfg.Dim,
		"tensors", len(f.Tensors))

	tensors := f.Matrices()
	m, err := model.NewAssembler(tensors, cfg.Layers, cfg.TileLayout).Assemble()
	if err != nil {
		return res, err
	}

	if err := arrowio.WriteModel(opts.OutputDir, m); err != nil {
		return res, fmt.Errorf("writing output: %w", err)
	}
	logger.Log.Info("wrote model", "dir", opts.OutputDir, "blocks", len(m.Blocks))

	if opts.Verify {
		if err := verifyWritten(opts.OutputDir, m); err != nil {
			return res, fmt.Errorf("verification: %w", err)
		}
		logger.Log.Info("verification passed", "dir", opts.OutputDir)
	}

	if opts.Publisher != nil {
		if err := opts.Publisher.Connect(ctx); err != nil {
			return res, err
		}
		defer func() { _ = opts.Publisher.Close() }()
		if err := flightpub.PublishModel(ctx, opts.Publisher, m); err != nil {
			return res, fmt.Errorf("publishing: %w", err)
		}
	}

	res = Result{
		Config:   cfg,
		Layers:   len(m.Blocks),
		Tensors:  len(tensors),
		Duration: time.Since(start),
	}
	metrics.RecordConversion(res.Duration)
	return res, nil
}

// verifyWritten reads the components back and compares them bitwise
// against the in-memory model.
func verifyWritten(dir string, want *model.Model) error {
	got, err := arrowio.ReadModel(dir, len(want.Blocks))
	if err != nil {
		metrics.VerifyFailures.Inc()
		return err
	}

	if err := compareMatrix("token_embd", want.TokenEmbedding.Weight.Data, got.TokenEmbedding.Weight.Data); err != nil {
		metrics.VerifyFailures.Inc()
		return err
	}
	for i := range want.Blocks {
		w, g := &want.Blocks[i], &got.Blocks[i]
		checks := []struct {
			name string
			err  error
		}{
			{"attn_qkv", compareBitLinear(w.AttnQKV, g.AttnQKV)},
			{"attn_output", compareBitLinear(w.AttnOutput, g.AttnOutput)},
			{"ffn_gate_up", compareBitLinear(w.FFNGateUp, g.FFNGateUp)},
			{"ffn_down", compareBitLinear(w.FFNDown, g.FFNDown)},
			{"attn_norm", compareMatrix("attn_norm", w.AttnNorm.Weight, g.AttnNorm.Weight)},
			{"ffn_norm", compareMatrix("ffn_norm", w.FFNNorm.Weight, g.FFNNorm.Weight)},
		}
		for _, c := range checks {
			if c.err != nil {
				metrics.VerifyFailures.Inc()
				return fmt.Errorf("block %d %s: %w", i, c.name, c.err)
			}
		}
	}
	if err := compareMatrix("output_norm", want.OutputNorm.Weight, got.OutputNorm.Weight); err != nil {
		metrics.VerifyFailures.Inc()
		return err
	}
	if err := compareMatrix("output", want.OutputHead.Weight.Data, got.OutputHead.Weight.Data); err != nil {
		metrics.VerifyFailures.Inc()
		return err
	}
	return nil
}

func compareBitLinear(want, got model.BitLinear) error {
	if want.Rows != got.Rows || want.Cols != got.Cols {
		return fmt.Errorf("shape %dx%d, want %dx%d", got.Rows, got.Cols, want.Rows, want.Cols)
	}
	if len(want.Packed) != len(got.Packed) {
		return fmt.Errorf("packed length %d, want %d", len(got.Packed), len(want.Packed))
	}
	for i := range want.Packed {
		if want.Packed[i] != got.Packed[i] {
			return fmt.Errorf("packed word %d: %08x, want %08x", i, got.Packed[i], want.Packed[i])
		}
	}
	return compareMatrix("scales", want.Scales, got.Scales)
}

// compareMatrix compares float payloads by bit pattern, so NaNs and
// signed zeros count as equal only to themselves.
func compareMatrix(name string, want, got []float32) error {
	if len(want) != len(got) {
		return fmt.Errorf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Float32bits(want[i]) != math.Float32bits(got[i]) {
			return fmt.Errorf("%s: element %d: %v, want %v", name, i, got[i], want[i])
		}
	}
	return nil
}

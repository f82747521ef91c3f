package config

import (
	"fmt"
	"strings"
)

// Config carries the model geometry the converter needs. Everything is
// read from source metadata; only Layers is load-bearing for assembly,
// the rest is reported in logs.
type Config struct {
	Architecture string
	Layers       int
	Dim          int
	HiddenDim    int
	VocabSize    int

	// TileLayout applies the warp-tile element shuffle between
	// quantization and packing.
	TileLayout bool
}

func (c *Config) Validate() error {
	if c.Layers <= 0 {
		return fmt.Errorf("invalid layers: %d (must be positive)", c.Layers)
	}
	if c.Dim < 0 {
		return fmt.Errorf("invalid dim: %d (must be non-negative)", c.Dim)
	}
	if c.HiddenDim < 0 {
		return fmt.Errorf("invalid hidden_dim: %d (must be non-negative)", c.HiddenDim)
	}
	if c.VocabSize < 0 {
		return fmt.Errorf("invalid vocab_size: %d (must be non-negative)", c.VocabSize)
	}
	return nil
}

func (c *Config) GetArchitecture() string {
	return strings.ToLower(c.Architecture)
}

// FromMetadata builds a Config from a GGUF metadata KV map. A missing
// or non-integer block count is a fatal config error; the other fields
// default to zero when absent.
func FromMetadata(kv map[string]interface{}) (Config, error) {
	cfg := Config{}
	if arch, ok := kv["general.architecture"].(string); ok {
		cfg.Architecture = arch
	}

	layers, ok := kvInt(kv, cfg.Architecture+".block_count", "block_count")
	if !ok {
		return cfg, fmt.Errorf("metadata missing layer count (%s.block_count)", cfg.Architecture)
	}
	cfg.Layers = int(layers)

	if v, ok := kvInt(kv, cfg.Architecture+".embedding_length", cfg.Architecture+".hidden_size"); ok {
		cfg.Dim = int(v)
	}
	if v, ok := kvInt(kv, cfg.Architecture+".feed_forward_length", cfg.Architecture+".intermediate_size"); ok {
		cfg.HiddenDim = int(v)
	}
	if v, ok := kvInt(kv, cfg.Architecture+".vocab_size", "general.vocab_size"); ok {
		cfg.VocabSize = int(v)
	}

	return cfg, cfg.Validate()
}

func kvInt(kv map[string]interface{}, keys ...string) (uint64, bool) {
	for _, key := range keys {
		if val, ok := kv[key]; ok {
			switch v := val.(type) {
			case uint64:
				return v, true
			case int64:
				return uint64(v), true
			case uint32:
				return uint64(v), true
			case int32:
				return uint64(v), true
			case int:
				return uint64(v), true
			}
		}
	}
	return 0, false
}

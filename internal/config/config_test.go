package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  Config{Architecture: "llama", Layers: 24, Dim: 2048},
			wantErr: false,
		},
		{
			name:    "zero layers",
			config:  Config{Architecture: "llama"},
			wantErr: true,
		},
		{
			name:    "negative layers",
			config:  Config{Layers: -1},
			wantErr: true,
		},
		{
			name:    "negative dim",
			config:  Config{Layers: 2, Dim: -5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromMetadata(t *testing.T) {
	kv := map[string]interface{}{
		"general.architecture":    "bitnet",
		"bitnet.block_count":      uint32(26),
		"bitnet.embedding_length": uint32(2560),
	}

	cfg, err := FromMetadata(kv)
	if err != nil {
		t.Fatalf("FromMetadata failed: %v", err)
	}
	if cfg.Layers != 26 {
		t.Errorf("expected 26 layers, got %d", cfg.Layers)
	}
	if cfg.Dim != 2560 {
		t.Errorf("expected dim 2560, got %d", cfg.Dim)
	}
	if cfg.GetArchitecture() != "bitnet" {
		t.Errorf("expected architecture bitnet, got %s", cfg.GetArchitecture())
	}
}

func TestFromMetadataMissingLayerCount(t *testing.T) {
	kv := map[string]interface{}{
		"general.architecture": "llama",
	}

	_, err := FromMetadata(kv)
	if err == nil {
		t.Fatal("expected error for missing block_count")
	}
	if !strings.Contains(err.Error(), "block_count") {
		t.Errorf("expected error to name block_count, got: %v", err)
	}
}

func TestFromMetadataIntegerWidths(t *testing.T) {
	for _, v := range []interface{}{uint64(12), int64(12), uint32(12), int32(12), int(12)} {
		kv := map[string]interface{}{
			"general.architecture": "llama",
			"llama.block_count":    v,
		}
		cfg, err := FromMetadata(kv)
		if err != nil {
			t.Fatalf("%T: FromMetadata failed: %v", v, err)
		}
		if cfg.Layers != 12 {
			t.Errorf("%T: expected 12 layers, got %d", v, cfg.Layers)
		}
	}
}

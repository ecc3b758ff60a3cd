package strata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`
tile_size: 256
atlas_inactivity: 10s
debug: true
`))
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	want.TileSize = 256
	want.AtlasInactivity = 10 * time.Second
	want.Debug = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"tile size", "tile_size: 0", "tile_size"},
		{"threshold", "tile_erase_threshold: -1", "tile_erase_threshold"},
		{"atlas not power of two", "atlas_dimension: 1000", "atlas_dimension"},
		{"tile larger than atlas", "tile_size: 512\natlas_dimension: 256", "tile_size"},
		{"min allocation too large", "tile_size: 64\natlas_dimension: 64\natlas_min_allocation: 128", "atlas_min_allocation"},
		{"release interval", "atlas_release_interval: 0s", "atlas_release_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.yaml))
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	if _, err := LoadConfig([]byte("tile_size: [")); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	if err := os.WriteFile(path, []byte("tile_erase_threshold: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TileEraseThreshold != 2 {
		t.Errorf("TileEraseThreshold = %d, want 2", cfg.TileEraseThreshold)
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

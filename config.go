package strata

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes tiling and atlas behaviour. The zero value is not usable;
// start from DefaultConfig or LoadConfig.
type Config struct {
	// TileSize is the edge length of backing-store tiles in pixels.
	TileSize int `yaml:"tile_size"`
	// TileEraseThreshold is how many surplus tiles a backing store keeps for
	// recycling before it starts removing them.
	TileEraseThreshold int `yaml:"tile_erase_threshold"`
	// AtlasDimension is the edge length of each update atlas.
	AtlasDimension int `yaml:"atlas_dimension"`
	// AtlasMinAllocation is the allocation granularity inside an atlas.
	AtlasMinAllocation int `yaml:"atlas_min_allocation"`
	// AtlasInactivity is how long an atlas may stay idle before release.
	AtlasInactivity time.Duration `yaml:"atlas_inactivity"`
	// AtlasReleaseInterval is the period of the idle-atlas sweep.
	AtlasReleaseInterval time.Duration `yaml:"atlas_release_interval"`
	// Debug makes protocol violations panic and logs paint statistics.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		TileSize:             512,
		TileEraseThreshold:   6,
		AtlasDimension:       1024,
		AtlasMinAllocation:   32,
		AtlasInactivity:      3 * time.Second,
		AtlasReleaseInterval: 500 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.TileSize <= 0:
		return &ConfigError{Field: "tile_size", Reason: "must be positive"}
	case c.TileEraseThreshold < 0:
		return &ConfigError{Field: "tile_erase_threshold", Reason: "must not be negative"}
	case c.AtlasDimension <= 0:
		return &ConfigError{Field: "atlas_dimension", Reason: "must be positive"}
	case c.AtlasDimension&(c.AtlasDimension-1) != 0:
		return &ConfigError{Field: "atlas_dimension", Reason: "must be a power of two"}
	case c.TileSize > c.AtlasDimension:
		return &ConfigError{Field: "tile_size", Reason: "exceeds atlas_dimension"}
	case c.AtlasMinAllocation <= 0:
		return &ConfigError{Field: "atlas_min_allocation", Reason: "must be positive"}
	case c.AtlasMinAllocation > c.AtlasDimension:
		return &ConfigError{Field: "atlas_min_allocation", Reason: "exceeds atlas_dimension"}
	case c.AtlasInactivity < 0:
		return &ConfigError{Field: "atlas_inactivity", Reason: "must not be negative"}
	case c.AtlasReleaseInterval <= 0:
		return &ConfigError{Field: "atlas_release_interval", Reason: "must be positive"}
	}
	return nil
}

// LoadConfig decodes YAML over DefaultConfig and validates the result.
// Fields missing from data keep their defaults.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("strata: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads and decodes a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("strata: read config: %w", err)
	}
	return LoadConfig(data)
}

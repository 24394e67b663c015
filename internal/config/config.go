package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// HostConfig drives one surfacectl host process.
type HostConfig struct {
	InspectorAddr string          `toml:"inspector_addr"`
	CorsOrigins   []string        `toml:"cors_origins"`
	ScaleFactor   float64         `toml:"scale_factor"`
	PoolCapacity  int             `toml:"pool_capacity"`
	Surfaces      []SurfaceConfig `toml:"surfaces"`
}

// SurfaceConfig declares one surface registered at startup.
type SurfaceConfig struct {
	ID        int64   `toml:"id"`
	Module    string  `toml:"module"`
	MinWidth  float64 `toml:"min_width"`
	MinHeight float64 `toml:"min_height"`
	MaxWidth  float64 `toml:"max_width"`
	MaxHeight float64 `toml:"max_height"`
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		InspectorAddr: ":9400",
		CorsOrigins:   []string{"http://localhost:3000"},
		ScaleFactor:   1.0,
		PoolCapacity:  16,
	}
}

func LoadHostConfig(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	if err := loadToml(path, &cfg); err != nil {
		return HostConfig{}, err
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.InspectorAddr) == "" {
		return fmt.Errorf("host config missing inspector_addr")
	}
	if cfg.ScaleFactor <= 0 {
		return fmt.Errorf("host config scale_factor must be positive")
	}
	if cfg.PoolCapacity < 0 {
		return fmt.Errorf("host config pool_capacity must not be negative")
	}
	seen := make(map[int64]struct{}, len(cfg.Surfaces))
	for i, sc := range cfg.Surfaces {
		if err := ValidateSurfaceEntry(sc); err != nil {
			return fmt.Errorf("surface[%d] invalid: %w", i, err)
		}
		if _, dup := seen[sc.ID]; dup {
			return fmt.Errorf("surface[%d] invalid: duplicate id %d", i, sc.ID)
		}
		seen[sc.ID] = struct{}{}
	}
	return nil
}

func ValidateSurfaceEntry(sc SurfaceConfig) error {
	if sc.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if strings.TrimSpace(sc.Module) == "" {
		return fmt.Errorf("module is required")
	}
	if sc.MaxWidth < sc.MinWidth || sc.MaxHeight < sc.MinHeight {
		return fmt.Errorf("max size must not be below min size")
	}
	return nil
}

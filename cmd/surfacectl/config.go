package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/surfacekit/internal/config"
)

// surfacectl config.toml key mapping to host runtime settings.
type fileConfig struct {
	InspectorAddr string              `toml:"inspector_addr"`
	CorsOrigins   []string            `toml:"cors_origins"`
	ScaleFactor   float64             `toml:"scale_factor"`
	PoolCapacity  int                 `toml:"pool_capacity"`
	Surfaces      []fileSurfaceConfig `toml:"surfaces"`
}

type fileSurfaceConfig struct {
	ID        int64   `toml:"id"`
	Module    string  `toml:"module"`
	MinWidth  float64 `toml:"min_width"`
	MinHeight float64 `toml:"min_height"`
	MaxWidth  float64 `toml:"max_width"`
	MaxHeight float64 `toml:"max_height"`
}

// surfacectl loader for TOML config with default overlay.
func loadHostConfig(path string) (config.HostConfig, error) {
	cfg := config.DefaultHostConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.HostConfig{}, fmt.Errorf("load host config: %w", err)
	}

	if meta.IsDefined("inspector_addr") {
		cfg.InspectorAddr = strings.TrimSpace(raw.InspectorAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("scale_factor") {
		cfg.ScaleFactor = raw.ScaleFactor
	}
	if meta.IsDefined("pool_capacity") {
		cfg.PoolCapacity = raw.PoolCapacity
	}
	if meta.IsDefined("surfaces") {
		cfg.Surfaces = make([]config.SurfaceConfig, 0, len(raw.Surfaces))
		for _, sc := range raw.Surfaces {
			cfg.Surfaces = append(cfg.Surfaces, config.SurfaceConfig{
				ID:        sc.ID,
				Module:    strings.TrimSpace(sc.Module),
				MinWidth:  sc.MinWidth,
				MinHeight: sc.MinHeight,
				MaxWidth:  sc.MaxWidth,
				MaxHeight: sc.MaxHeight,
			})
		}
	}

	if err := config.ValidateHostConfig(cfg); err != nil {
		return config.HostConfig{}, fmt.Errorf("load host config: %w", err)
	}
	return cfg, nil
}

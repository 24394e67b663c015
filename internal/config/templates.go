package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders the default host config as TOML.
func Template() (string, error) {
	cfg := DefaultHostConfig()
	cfg.Surfaces = []SurfaceConfig{
		{
			ID:        1,
			Module:    "Root",
			MaxWidth:  390,
			MaxHeight: 844,
		},
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr               string   `json:"addr" yaml:"addr" toml:"addr"`
	DataDir            string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	SlotCount          int      `json:"slot_count" yaml:"slot_count" toml:"slot_count"`
	LookbackDays       int      `json:"lookback_days" yaml:"lookback_days" toml:"lookback_days"`
	ReasonerModel      string   `json:"reasoner_model" yaml:"reasoner_model" toml:"reasoner_model"`
	ReasonerTimeoutSec int      `json:"reasoner_timeout_sec" yaml:"reasoner_timeout_sec" toml:"reasoner_timeout_sec"`
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins        []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

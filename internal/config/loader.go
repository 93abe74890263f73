package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".meshlora"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// DatabaseFile is the default store file name.
	DatabaseFile = "mesh.db"
)

// ConfigPath returns the path to the config file.
// MESHLORA_CONFIG overrides the default ~/.meshlora/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("MESHLORA_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), applies MESHLORA_* environment
// overrides per group, and fills in defaults for anything unset.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // use defaults if we can't resolve a config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Environment overrides per group.
	envconfig.Process("MESHLORA_PATHS", &cfg.Paths)
	envconfig.Process("MESHLORA_TRANSPORT", &cfg.Transport)
	envconfig.Process("MESHLORA_MODEL", &cfg.Model)
	envconfig.Process("MESHLORA_OLLAMA", &cfg.Providers.Ollama)
	envconfig.Process("MESHLORA_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("MESHLORA_FILTER", &cfg.Filter)
	envconfig.Process("MESHLORA_BRIDGE", &cfg.Bridge)
	envconfig.Process("MESHLORA_TOOLS_WEATHER", &cfg.Tools.Weather)
	envconfig.Process("MESHLORA_TOOLS_SEARCH", &cfg.Tools.Search)

	if cfg.Paths.Database == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.Paths.Database = filepath.Join(home, ConfigDir, DatabaseFile)
	}

	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

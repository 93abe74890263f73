package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Transport.Kind != "tcp" || cfg.Transport.Address != "localhost:4403" {
		t.Errorf("transport defaults = %+v", cfg.Transport)
	}
	if cfg.Model.Provider != "ollama" || cfg.Model.ReplyBudgetBytes != 200 {
		t.Errorf("model defaults = %+v", cfg.Model)
	}
	if cfg.Filter.MaxMessages != 5 || cfg.Filter.WindowSeconds != 60 {
		t.Errorf("filter defaults = %+v", cfg.Filter)
	}
	if cfg.Bridge.OutboxMaxAttempts != 3 || cfg.Bridge.OutboxInterval != 5*time.Second {
		t.Errorf("bridge defaults = %+v", cfg.Bridge)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MESHLORA_CONFIG", filepath.Join(t.TempDir(), "nope", "config.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Provider != "ollama" {
		t.Errorf("provider = %s, want default", cfg.Model.Provider)
	}
	if cfg.Paths.Database == "" {
		t.Error("database path not defaulted")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"transport": {"kind": "fake", "address": "example:9000"},
		"model": {"provider": "openai", "name": "gpt-4o-mini"},
		"paths": {"database": "` + filepath.ToSlash(filepath.Join(dir, "mesh.db")) + `"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MESHLORA_CONFIG", path)
	t.Setenv("MESHLORA_MODEL_NAME", "gpt-4.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.Kind != "fake" || cfg.Transport.Address != "example:9000" {
		t.Errorf("transport = %+v, want file values", cfg.Transport)
	}
	if cfg.Model.Provider != "openai" {
		t.Errorf("provider = %s, want file value", cfg.Model.Provider)
	}
	// Environment wins over the file.
	if cfg.Model.Name != "gpt-4.1" {
		t.Errorf("model name = %s, want env override", cfg.Model.Name)
	}
	// Unset fields keep defaults.
	if cfg.Filter.MaxMessages != 5 {
		t.Errorf("filter max = %d, want default", cfg.Filter.MaxMessages)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MESHLORA_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv("MESHLORA_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Model.Provider = "none"
	cfg.Tools.Weather.Latitude = 47.6
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model.Provider != "none" || loaded.Tools.Weather.Latitude != 47.6 {
		t.Errorf("round trip = %+v", loaded.Model)
	}
}

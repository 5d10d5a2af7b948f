package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":10010" {
		t.Fatalf("default address = %q", cfg.Server.Address)
	}
	if cfg.Upload.MaxFileBytes != 50<<20 || cfg.Upload.MaxSessionBytes != 100<<20 || cfg.Upload.MaxSessionFiles != 10 {
		t.Fatalf("default upload limits: %+v", cfg.Upload)
	}
	if cfg.Chunking.WindowTokens != 512 || cfg.Chunking.Overlap != 0.15 {
		t.Fatalf("default chunking: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.VectorWeight != 0.6 || cfg.Retrieval.KeywordWeight != 0.4 || cfg.Retrieval.TopN != 8 {
		t.Fatalf("default retrieval: %+v", cfg.Retrieval)
	}
}

func TestLoadConfigFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"server":{"address":":9999"},"chunking":{"window_tokens":450}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("address override lost: %q", cfg.Server.Address)
	}
	if cfg.Chunking.WindowTokens != 450 {
		t.Fatalf("window override lost: %d", cfg.Chunking.WindowTokens)
	}
	if cfg.Retrieval.TopN != 8 {
		t.Fatalf("defaults dropped on partial file: %+v", cfg.Retrieval)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"chunking":{"window_tokens":100}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected window_tokens outside [400,600] to fail validation")
	}
}

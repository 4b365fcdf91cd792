package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BSOD_CLI_DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AIProvider != "ollama" {
		t.Errorf("AIProvider = %q, want ollama default", cfg.AIProvider)
	}
	if cfg.DatabasePath == "" || cfg.KnownDriversPath == "" {
		t.Error("derived paths not filled in")
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("ai_provider: openai\nai_model: gpt-4o-mini\ndump_dirs:\n  - /mnt/dumps\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BSOD_CLI_DATA_DIR", dir)
	t.Setenv("BSOD_CLI_AI_MODEL", "gpt-4o")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AIProvider != "openai" {
		t.Errorf("AIProvider = %q, want openai from file", cfg.AIProvider)
	}
	if cfg.AIModel != "gpt-4o" {
		t.Errorf("AIModel = %q, env must override the file", cfg.AIModel)
	}
	if len(cfg.DumpDirs) != 1 || cfg.DumpDirs[0] != "/mnt/dumps" {
		t.Errorf("DumpDirs = %v", cfg.DumpDirs)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("ai_provider: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BSOD_CLI_DATA_DIR", dir)

	if _, err := Load(); err == nil {
		t.Fatal("broken YAML loaded without error")
	}
}

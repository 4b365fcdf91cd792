// Package config loads tool settings from an optional YAML file with
// BSOD_CLI_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir          string   `yaml:"data_dir"`
	DatabasePath     string   `yaml:"database_path"`
	KnownDriversPath string   `yaml:"known_drivers_path"`
	DumpDirs         []string `yaml:"dump_dirs"`

	AIProvider  string `yaml:"ai_provider"` // "openai" or "ollama"
	AIBaseURL   string `yaml:"ai_base_url"`
	AIModel     string `yaml:"ai_model"`
	AIAPIKey    string `yaml:"ai_api_key"`
	AIMaxTokens int    `yaml:"ai_max_tokens"`

	// Results scoring below this are flagged as low confidence in the
	// CLI output.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// Load reads ~/.bsodcli/config.yaml when present and applies
// environment overrides. A missing file is not an error; a broken one
// is.
func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	cfg := &Config{
		DataDir:             filepath.Join(home, ".bsodcli"),
		AIProvider:          "ollama",
		AIBaseURL:           "http://localhost:11434",
		AIModel:             "llama3.2",
		AIMaxTokens:         1024,
		ConfidenceThreshold: 0.6,
	}

	path := filepath.Join(cfg.DataDir, "config.yaml")
	if envDir := os.Getenv("BSOD_CLI_DATA_DIR"); envDir != "" {
		path = filepath.Join(envDir, "config.yaml")
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(cfg)

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "crash_history.db")
	}
	if cfg.KnownDriversPath == "" {
		cfg.KnownDriversPath = filepath.Join(cfg.DataDir, "known_drivers.json")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BSOD_CLI_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BSOD_CLI_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("BSOD_CLI_KNOWN_DRIVERS"); v != "" {
		cfg.KnownDriversPath = v
	}
	if v := os.Getenv("BSOD_CLI_DUMP_DIRS"); v != "" {
		cfg.DumpDirs = splitList(v)
	}
	if v := os.Getenv("BSOD_CLI_AI_PROVIDER"); v != "" {
		cfg.AIProvider = v
	}
	if v := os.Getenv("BSOD_CLI_AI_BASE_URL"); v != "" {
		cfg.AIBaseURL = v
	}
	if v := os.Getenv("BSOD_CLI_AI_MODEL"); v != "" {
		cfg.AIModel = v
	}
	if v := os.Getenv("BSOD_CLI_AI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.AIAPIKey == "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("BSOD_CLI_AI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AIMaxTokens = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

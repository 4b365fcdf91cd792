// Package ai turns an analysis result into a free-text expert
// explanation via an external model. The text is appended to the
// result verbatim and never parsed back into the data model.
package ai

import (
	"context"
	"fmt"
	"strings"

	"bsod-cli/internal/config"
)

// Provider is one model backend. Analyze blocks until the model
// responds or ctx expires.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Analyze(ctx context.Context, prompt string) (string, error)
}

// FromConfig builds the configured provider. A provider that cannot
// work with the given settings (missing key, unknown name) returns an
// error; the CLI degrades to a warning, analysis itself never depends
// on AI.
func FromConfig(cfg *config.Config) (Provider, error) {
	switch strings.ToLower(cfg.AIProvider) {
	case "ollama":
		return NewOllamaProvider(cfg.AIBaseURL, cfg.AIModel), nil
	case "openai":
		if cfg.AIAPIKey == "" {
			return nil, fmt.Errorf("openai provider needs an API key (BSOD_CLI_AI_API_KEY)")
		}
		return NewOpenAIProvider(cfg.AIBaseURL, cfg.AIModel, cfg.AIAPIKey, cfg.AIMaxTokens), nil
	case "", "none":
		return nil, fmt.Errorf("no AI provider configured")
	}
	return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
}

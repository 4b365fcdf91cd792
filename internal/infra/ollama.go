package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaClient probes and manages a local Ollama used as the AI
// enrichment backend.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	docker     *DockerClient
}

type OllamaModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

type ollamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

func NewOllamaClient(docker *DockerClient, baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		docker: docker,
	}
}

func (o *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not responding: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func (o *OllamaClient) ListModels(ctx context.Context) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models failed with status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return tags.Models, nil
}

func (o *OllamaClient) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := o.ListModels(ctx)
	if err != nil {
		return false, err
	}
	search := strings.ToLower(name)
	for _, model := range models {
		n := strings.ToLower(model.Name)
		if n == search || strings.HasPrefix(n, search+":") {
			return true, nil
		}
	}
	return false, nil
}

// EnsureRunning starts the Ollama container when the API is down and a
// stopped container exists, then waits for the API to answer.
func (o *OllamaClient) EnsureRunning(ctx context.Context) error {
	if err := o.Ping(ctx); err == nil {
		return nil
	}
	if o.docker == nil {
		return fmt.Errorf("ollama not responding and no docker client to start it")
	}

	c, err := o.docker.FindContainer(ctx, "ollama")
	if err != nil {
		return fmt.Errorf("docker not available: %w", err)
	}
	if c == nil {
		return fmt.Errorf("no ollama container found - run 'docker run -d --name ollama -p 11434:11434 ollama/ollama'")
	}
	if c.State != "running" {
		if err := o.docker.StartContainer(ctx, c.ID); err != nil {
			return err
		}
	}
	return o.waitForAPI(ctx)
}

func (o *OllamaClient) waitForAPI(ctx context.Context) error {
	const maxAttempts = 30
	for i := 0; i < maxAttempts; i++ {
		if err := o.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("ollama API not available after %d attempts", maxAttempts)
}

func (o *OllamaClient) BaseURL() string {
	return o.baseURL
}

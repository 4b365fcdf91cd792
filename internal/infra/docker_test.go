package infra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestIntegration_DockerClient_CheckHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:      "alpine:latest",
		Cmd:        []string{"sleep", "30"},
		WaitingFor: wait.ForLog("").WithStartupTimeout(10 * time.Second),
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer cont.Terminate(ctx)

	client, err := NewDockerClient()
	if err != nil {
		t.Fatalf("failed to create docker client: %v", err)
	}
	defer client.Close()

	health := client.CheckHealth(ctx)
	if !health.Available {
		t.Fatalf("docker should be available: %v", health.Error)
	}
	if len(health.Containers) == 0 {
		t.Error("expected at least one container to be visible")
	}

	containerID := cont.GetContainerID()
	found := false
	for _, c := range health.Containers {
		if c.ID == containerID[:12] {
			found = true
			if c.State != "running" {
				t.Errorf("expected container state 'running', got '%s'", c.State)
			}
			break
		}
	}
	if !found {
		t.Error("test container not found in health check")
	}
}

func TestIntegration_OllamaClient_AgainstMockAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	nginxConf := `
events {}
http {
    server {
        listen 11434;
        location /api/tags {
            default_type application/json;
            return 200 '{"models":[{"name":"llama3.2:latest","modified_at":"2026-01-01T00:00:00Z","size":1234567890}]}';
        }
    }
}
`

	req := testcontainers.ContainerRequest{
		Image:        "nginx:alpine",
		ExposedPorts: []string{"11434/tcp"},
		Cmd:          []string{"sh", "-c", fmt.Sprintf("echo '%s' > /etc/nginx/nginx.conf && nginx -g 'daemon off;'", nginxConf)},
		WaitingFor:   wait.ForHTTP("/api/tags").WithPort("11434/tcp").WithStartupTimeout(30 * time.Second),
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start mock ollama container: %v", err)
	}
	defer cont.Terminate(ctx)

	mappedPort, err := cont.MappedPort(ctx, "11434")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}

	ollama := NewOllamaClient(nil, fmt.Sprintf("http://%s:%s", host, mappedPort.Port()))

	if err := ollama.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	models, err := ollama.ListModels(ctx)
	if err != nil {
		t.Fatalf("list models failed: %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama3.2:latest" {
		t.Errorf("models = %+v", models)
	}

	hasModel, err := ollama.HasModel(ctx, "llama3.2")
	if err != nil {
		t.Fatalf("has model failed: %v", err)
	}
	if !hasModel {
		t.Error("expected HasModel to match the tag prefix")
	}

	hasModel, err = ollama.HasModel(ctx, "nonexistent-model")
	if err != nil {
		t.Fatalf("has model failed: %v", err)
	}
	if hasModel {
		t.Error("expected HasModel to return false for an absent model")
	}
}

// Package infra checks the local environment the AI enrichment relies
// on: the Docker daemon and the Ollama container/API. Analysis itself
// never touches any of this.
package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

type ContainerInfo struct {
	ID     string
	Name   string
	Image  string
	Status string
	State  string
}

type DockerHealth struct {
	Available  bool
	Version    string
	Containers []ContainerInfo
	Error      error
}

type DockerClient struct {
	cli *client.Client
}

func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client failed: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

func (d *DockerClient) CheckHealth(ctx context.Context) DockerHealth {
	health := DockerHealth{}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := d.cli.Ping(checkCtx); err != nil {
		health.Error = fmt.Errorf("daemon unavailable: %w", err)
		return health
	}

	version, err := d.cli.ServerVersion(checkCtx)
	if err != nil {
		health.Error = fmt.Errorf("version check failed: %w", err)
		return health
	}
	health.Version = version.Version

	containers, err := d.cli.ContainerList(checkCtx, container.ListOptions{All: true})
	if err != nil {
		health.Error = fmt.Errorf("container list failed: %w", err)
		return health
	}

	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		health.Containers = append(health.Containers, ContainerInfo{
			ID:     c.ID[:12],
			Name:   name,
			Image:  c.Image,
			Status: c.Status,
			State:  c.State,
		})
	}

	health.Available = true
	return health
}

// FindContainer returns the first container whose name or image
// contains needle, or nil.
func (d *DockerClient) FindContainer(ctx context.Context, needle string) (*ContainerInfo, error) {
	health := d.CheckHealth(ctx)
	if !health.Available {
		return nil, health.Error
	}
	needle = strings.ToLower(needle)
	for i := range health.Containers {
		c := &health.Containers[i]
		if strings.Contains(strings.ToLower(c.Name), needle) ||
			strings.Contains(strings.ToLower(c.Image), needle) {
			return c, nil
		}
	}
	return nil, nil
}

func (d *DockerClient) StartContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, err)
	}
	return nil
}

func (d *DockerClient) StopContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop container %s: %w", id, err)
	}
	return nil
}

func (d *DockerClient) Close() error {
	if d.cli != nil {
		return d.cli.Close()
	}
	return nil
}

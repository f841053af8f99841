// Package compose implements compose_deploy and compose_update: multi-
// service stack rollout over the Docker Engine API client, pulling each
// service's image and creating/recreating its container in turn. Both
// tools require approval; there is no partial-stack auto-approve.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// Service describes one service in a compose payload.
type Service struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// DockerClient mirrors the subset of *client.Client this package needs, so
// tests can substitute a stub instead of dialing a real daemon.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Docker  DockerClient
	Timeout time.Duration
}

// Register adds compose_deploy and compose_update to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.Timeout <= 0 {
		deps.Timeout = 120 * time.Second
	}
	schema := `{"type":"object","required":["stackName","services"],"properties":{"stackName":{"type":"string"},"services":{"type":"array","items":{"type":"object","required":["name","image"],"properties":{"name":{"type":"string"},"image":{"type":"string"}}}}}}`

	deploySpec := domain.Spec("compose.compose_deploy", "compose.compose", "Deploy every service of a compose stack as a container", schema,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(deploySpec, deps.apply); err != nil {
		return err
	}

	updateSpec := domain.Spec("compose.compose_update", "compose.compose", "Recreate every service of a compose stack with its current image", schema,
		domain.RequiresApproval(tools.RiskMedium))
	return r.Register(updateSpec, deps.apply)
}

type stackPayload struct {
	StackName string    `json:"stackName"`
	Services  []Service `json:"services"`
}

func (d Deps) apply(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p stackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	containerIDs := make(map[string]string, len(p.Services))
	for _, svc := range p.Services {
		pullResp, err := d.Docker.ImagePull(ctx, svc.Image, image.PullOptions{})
		if err != nil {
			return nil, nil, fmt.Errorf("pull image %s for service %s: %w", svc.Image, svc.Name, err)
		}
		pullResp.Close()

		containerName := p.StackName + "_" + svc.Name
		created, err := d.Docker.ContainerCreate(ctx, &container.Config{Image: svc.Image}, nil, nil, nil, containerName)
		if err != nil {
			return nil, nil, fmt.Errorf("create container for service %s: %w", svc.Name, err)
		}
		if err := d.Docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
			return nil, nil, fmt.Errorf("start container for service %s: %w", svc.Name, err)
		}
		containerIDs[svc.Name] = created.ID
	}

	b, err := json.Marshal(struct {
		StackName    string            `json:"stackName"`
		ContainerIDs map[string]string `json:"containerIds"`
	}{StackName: p.StackName, ContainerIDs: containerIDs})
	return b, nil, err
}

// Package swarm implements swarm_service_scale and swarm_node_list over the
// Docker Engine API client's Swarm surface.
package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/swarm"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// DockerClient mirrors the subset of *client.Client this package needs, so
// tests can substitute a stub instead of dialing a real daemon.
type DockerClient interface {
	ServiceInspectWithRaw(ctx context.Context, serviceID string, options types.ServiceInspectOptions) (swarm.Service, []byte, error)
	ServiceUpdate(ctx context.Context, serviceID string, version swarm.Version, service swarm.ServiceSpec, options types.ServiceUpdateOptions) (swarm.ServiceUpdateResponse, error)
	NodeList(ctx context.Context, options types.NodeListOptions) ([]swarm.Node, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Docker  DockerClient
	Timeout time.Duration
}

// Register adds swarm_service_scale and swarm_node_list to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}

	scaleSpec := domain.Spec("swarm.swarm_service_scale", "swarm.swarm", "Scale a Swarm service to the given replica count",
		`{"type":"object","required":["serviceId","replicas"],"properties":{"serviceId":{"type":"string"},"replicas":{"type":"integer","minimum":0}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(scaleSpec, deps.scale); err != nil {
		return err
	}

	nodeListSpec := domain.Spec("swarm.swarm_node_list", "swarm.swarm", "List nodes in the Swarm cluster",
		`{"type":"object","properties":{}}`, domain.ReadOnly)
	return r.Register(nodeListSpec, deps.nodeList)
}

type scalePayload struct {
	ServiceID string `json:"serviceId"`
	Replicas  uint64 `json:"replicas"`
}

func (d Deps) scale(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p scalePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	svc, _, err := d.Docker.ServiceInspectWithRaw(ctx, p.ServiceID, types.ServiceInspectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("inspect service %s: %w", p.ServiceID, err)
	}

	spec := svc.Spec
	if spec.Mode.Replicated == nil {
		return nil, nil, fmt.Errorf("service %s is not in replicated mode", p.ServiceID)
	}
	spec.Mode.Replicated.Replicas = &p.Replicas

	if _, err := d.Docker.ServiceUpdate(ctx, svc.ID, svc.Version, spec, types.ServiceUpdateOptions{}); err != nil {
		return nil, nil, fmt.Errorf("update service %s: %w", p.ServiceID, err)
	}

	b, err := json.Marshal(struct {
		ServiceID string `json:"serviceId"`
		Replicas  uint64 `json:"replicas"`
	}{ServiceID: p.ServiceID, Replicas: p.Replicas})
	return b, nil, err
}

func (d Deps) nodeList(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	nodes, err := d.Docker.NodeList(ctx, types.NodeListOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("list nodes: %w", err)
	}

	out := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeSummary{
			ID:           n.ID,
			Hostname:     n.Description.Hostname,
			Role:         string(n.Spec.Role),
			Availability: string(n.Spec.Availability),
			Status:       string(n.Status.State),
		})
	}
	b, err := json.Marshal(struct {
		Nodes []nodeSummary `json:"nodes"`
	}{Nodes: out})
	return b, nil, err
}

type nodeSummary struct {
	ID           string `json:"id"`
	Hostname     string `json:"hostname"`
	Role         string `json:"role"`
	Availability string `json:"availability"`
	Status       string `json:"status"`
}

// Package application implements application_deploy, application_restart,
// and application_stop over the Docker Engine API client. Restart and stop
// record the equivalent `docker restart`/`docker stop` CLI invocation in
// their result (shell-quoted via safety.QuoteShellArg) so operators can
// audit or replay the action outside the agent loop.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/domain/deployer"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// DockerClient mirrors the subset of *client.Client this package needs, so
// tests can substitute a stub instead of dialing a real daemon. Deploying no
// longer touches the daemon directly (see Deps.Deployer); this interface now
// only covers the two synchronous, short-lived lifecycle operations.
type DockerClient interface {
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
}

// Deps holds the dependencies Register closes over. Deployer triggers the
// actual deployment asynchronously; this package never awaits image pull or
// container start/stop for application_deploy itself, only records the
// trigger and hands back the resulting deployment id.
type Deps struct {
	Docker   DockerClient
	Deployer deployer.Deployer
	Timeout  time.Duration
}

// Register adds application_deploy, application_restart, and
// application_stop to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	if deps.Timeout <= 0 {
		deps.Timeout = 60 * time.Second
	}

	deploySpec := domain.Spec("application.application_deploy", "application.application", "Trigger a deployment of the application via the external deployer",
		`{"type":"object","required":["applicationId"],"properties":{"applicationId":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(deploySpec, deps.deploy); err != nil {
		return err
	}

	restartSpec := domain.Spec("application.application_restart", "application.application", "Restart a running application container",
		`{"type":"object","required":["containerId"],"properties":{"containerId":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(restartSpec, deps.restart); err != nil {
		return err
	}

	stopSpec := domain.Spec("application.application_stop", "application.application", "Stop a running application container",
		`{"type":"object","required":["containerId"],"properties":{"containerId":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	return r.Register(stopSpec, deps.stop)
}

type deployPayload struct {
	ApplicationID string `json:"applicationId"`
}

func (d Deps) deploy(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p deployPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	dep, err := d.Deployer.Deploy(ctx, p.ApplicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("trigger deploy of application %s: %w", p.ApplicationID, err)
	}

	b, err := json.Marshal(struct {
		ApplicationID string          `json:"applicationId"`
		Status        deployer.Status `json:"status"`
	}{ApplicationID: p.ApplicationID, Status: dep.Status})
	return b, nil, err
}

type containerRefPayload struct {
	ContainerID string `json:"containerId"`
}

func (d Deps) restart(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p containerRefPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	if err := d.Docker.ContainerRestart(ctx, p.ContainerID, container.StopOptions{}); err != nil {
		return nil, nil, fmt.Errorf("restart container %s: %w", p.ContainerID, err)
	}
	b, err := json.Marshal(struct {
		Restarted     bool   `json:"restarted"`
		EquivalentCmd string `json:"equivalentCommand"`
	}{Restarted: true, EquivalentCmd: "docker restart " + safety.QuoteShellArg(p.ContainerID)})
	return b, nil, err
}

func (d Deps) stop(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p containerRefPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	if err := d.Docker.ContainerStop(ctx, p.ContainerID, container.StopOptions{}); err != nil {
		return nil, nil, fmt.Errorf("stop container %s: %w", p.ContainerID, err)
	}
	b, err := json.Marshal(struct {
		Stopped       bool   `json:"stopped"`
		EquivalentCmd string `json:"equivalentCommand"`
	}{Stopped: true, EquivalentCmd: "docker stop " + safety.QuoteShellArg(p.ContainerID)})
	return b, nil, err
}

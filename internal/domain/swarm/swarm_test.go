package swarm

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types"
	dockerswarm "github.com/docker/docker/api/types/swarm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeDocker struct {
	service        dockerswarm.Service
	updatedService dockerswarm.ServiceSpec
	nodes          []dockerswarm.Node
}

func (f *fakeDocker) ServiceInspectWithRaw(ctx context.Context, serviceID string, options types.ServiceInspectOptions) (dockerswarm.Service, []byte, error) {
	return f.service, nil, nil
}

func (f *fakeDocker) ServiceUpdate(ctx context.Context, serviceID string, version dockerswarm.Version, service dockerswarm.ServiceSpec, options types.ServiceUpdateOptions) (dockerswarm.ServiceUpdateResponse, error) {
	f.updatedService = service
	return dockerswarm.ServiceUpdateResponse{}, nil
}

func (f *fakeDocker) NodeList(ctx context.Context, options types.NodeListOptions) ([]dockerswarm.Node, error) {
	return f.nodes, nil
}

func newRegistry(t *testing.T, docker DockerClient) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Docker: docker}))
	return r
}

func TestServiceScaleUpdatesReplicaCount(t *testing.T) {
	replicas := uint64(2)
	docker := &fakeDocker{
		service: dockerswarm.Service{
			ID: "svc-1",
			Spec: dockerswarm.ServiceSpec{
				Mode: dockerswarm.ServiceMode{Replicated: &dockerswarm.ReplicatedService{Replicas: &replicas}},
			},
		},
	}
	r := newRegistry(t, docker)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "swarm.swarm_service_scale",
		[]byte(`{"serviceId":"svc-1","replicas":5}`), "tu-1")
	require.Nil(t, msg.Error)
	require.NotNil(t, docker.updatedService.Mode.Replicated)
	assert.Equal(t, uint64(5), *docker.updatedService.Mode.Replicated.Replicas)
}

func TestServiceScaleRejectsNonReplicatedService(t *testing.T) {
	docker := &fakeDocker{service: dockerswarm.Service{ID: "svc-1"}}
	r := newRegistry(t, docker)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "swarm.swarm_service_scale",
		[]byte(`{"serviceId":"svc-1","replicas":5}`), "tu-1")
	require.NotNil(t, msg.Error)
}

func TestNodeListReturnsNodeSummaries(t *testing.T) {
	docker := &fakeDocker{nodes: []dockerswarm.Node{
		{ID: "node-1", Description: dockerswarm.NodeDescription{Hostname: "host-a"}},
	}}
	r := newRegistry(t, docker)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "swarm.swarm_node_list", []byte(`{}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Contains(t, string(msg.Result), "host-a")
}

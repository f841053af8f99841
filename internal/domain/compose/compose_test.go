package compose

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeDocker struct {
	createdNames []string
	started      []string
}

func (f *fakeDocker) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.createdNames = append(f.createdNames, containerName)
	return container.CreateResponse{ID: "container-" + containerName}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func TestDeployCreatesAndStartsEveryService(t *testing.T) {
	docker := &fakeDocker{}
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Docker: docker}))

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "compose.compose_deploy",
		[]byte(`{"stackName":"shop","services":[{"name":"web","image":"nginx"},{"name":"db","image":"postgres"}]}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.ElementsMatch(t, []string{"shop_web", "shop_db"}, docker.createdNames)
	assert.Len(t, docker.started, 2)
	assert.Contains(t, string(msg.Result), "shop")
}

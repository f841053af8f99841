package port

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeStore struct {
	exposed []Binding
	closed  []int
}

func (f *fakeStore) Expose(ctx context.Context, orgID string, b Binding) (Binding, error) {
	f.exposed = append(f.exposed, b)
	return b, nil
}

func (f *fakeStore) Close(ctx context.Context, orgID, applicationID string, hostPort int) error {
	f.closed = append(f.closed, hostPort)
	return nil
}

func newRegistry(t *testing.T, store Store) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Store: store}))
	return r
}

func TestPortExposeDefaultsProtocolToTCP(t *testing.T) {
	store := &fakeStore{}
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "port.port_expose",
		[]byte(`{"applicationId":"app-1","hostPort":8080,"containerPort":80}`), "tu-1")
	require.Nil(t, msg.Error)
	require.Len(t, store.exposed, 1)
	assert.Equal(t, "tcp", store.exposed[0].Protocol)
}

func TestPortCloseClosesRequestedPort(t *testing.T) {
	store := &fakeStore{}
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "port.port_close",
		[]byte(`{"applicationId":"app-1","hostPort":8080}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.Equal(t, []int{8080}, store.closed)
}

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeStore struct {
	creds []Credential
}

func (f *fakeStore) Create(ctx context.Context, orgID, url, username, password string) (Credential, error) {
	c := Credential{ID: "cred-1", URL: url, Username: username, Password: safety.NewSecret(password)}
	f.creds = append(f.creds, c)
	return c, nil
}

func (f *fakeStore) List(ctx context.Context, orgID string) ([]Credential, error) {
	return f.creds, nil
}

func newRegistry(t *testing.T, store Store) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Store: store}))
	return r
}

func TestRegistryCreateNeverLeaksPassword(t *testing.T) {
	store := &fakeStore{}
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "registry.registry_create",
		[]byte(`{"url":"registry.example.com","username":"ci","password":"hunter2"}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.NotContains(t, string(msg.Result), "hunter2")
}

func TestRegistryListNeverLeaksPassword(t *testing.T) {
	store := &fakeStore{}
	store.Create(context.Background(), "org-1", "registry.example.com", "ci", "hunter2")
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "registry.registry_list", []byte(`{}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.NotContains(t, string(msg.Result), "hunter2")
}

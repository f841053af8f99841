package project

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type fakeStore struct {
	projects map[string][]Project
}

func (f *fakeStore) List(ctx context.Context, orgID string) ([]Project, error) {
	return f.projects[orgID], nil
}

func (f *fakeStore) Get(ctx context.Context, orgID, projectID string) (Project, bool, error) {
	for _, p := range f.projects[orgID] {
		if p.ID == projectID {
			return p, true, nil
		}
	}
	return Project{}, false, nil
}

func newRegistry(t *testing.T, store Store) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.NewRegistry()
	require.NoError(t, Register(r, Deps{Store: store}))
	return r
}

func TestProjectListScopesByOrg(t *testing.T) {
	store := &fakeStore{projects: map[string][]Project{
		"org-1": {{ID: "p1", Name: "one"}},
		"org-2": {{ID: "p2", Name: "two"}},
	}}
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "project.project_list", json.RawMessage(`{}`), "tu-1")
	require.Nil(t, msg.Error)
	assert.JSONEq(t, `{"projects":[{"id":"p1","name":"one"}]}`, string(msg.Result))
}

func TestProjectGetNotFoundReturnsError(t *testing.T) {
	store := &fakeStore{projects: map[string][]Project{}}
	r := newRegistry(t, store)

	msg := r.Execute(context.Background(), toolregistry.ToolContext{OrgID: ids.OrgID("org-1")}, "project.project_get", json.RawMessage(`{"projectId":"missing"}`), "tu-1")
	require.NotNil(t, msg.Error)
	assert.Equal(t, "internal", msg.Error.Code)
}

// Package project implements the project_list/project_get tools: read-only
// lookups over the organization's projects, requiring no approval (S1
// scenario).
package project

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Project is the projection returned to the model; it never carries
// anything beyond what a planner needs to choose a target for a follow-up
// tool call.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Store is the organization-scoped project catalog. Implementations load
// from whichever persistence layer the deployment wires (Mongo, SQL, or an
// in-memory fixture for tests).
type Store interface {
	List(ctx context.Context, orgID string) ([]Project, error)
	Get(ctx context.Context, orgID, projectID string) (Project, bool, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Store Store
}

// Register adds project_list and project_get to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	listSpec := domain.Spec("project.project_list", "project.project", "List the organization's projects",
		`{"type":"object","properties":{}}`, domain.ReadOnly)
	if err := r.Register(listSpec, deps.list); err != nil {
		return err
	}

	getSpec := domain.Spec("project.project_get", "project.project", "Fetch a single project by id",
		`{"type":"object","required":["projectId"],"properties":{"projectId":{"type":"string"}}}`, domain.ReadOnly)
	return r.Register(getSpec, deps.get)
}

func (d Deps) list(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	projects, err := d.Store.List(ctx, string(tc.OrgID))
	if err != nil {
		return nil, nil, err
	}
	if projects == nil {
		projects = []Project{}
	}
	b, err := json.Marshal(struct {
		Projects []Project `json:"projects"`
	}{Projects: projects})
	return b, nil, err
}

type getPayload struct {
	ProjectID string `json:"projectId"`
}

func (d Deps) get(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p getPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	proj, ok, err := d.Store.Get(ctx, string(tc.OrgID), p.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("project %q not found", p.ProjectID)
	}
	b, err := json.Marshal(proj)
	return b, nil, err
}

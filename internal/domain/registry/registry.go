// Package registry implements registry_create and registry_list: container
// image registry credentials, masked in every tool-facing projection the
// same way notification targets are.
package registry

import (
	"context"
	"encoding/json"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Credential is the persisted record; Password is never returned in full.
type Credential struct {
	ID       string
	URL      string
	Username string
	Password safety.Secret[string]
}

// View is the tool-facing projection of a Credential.
type View struct {
	ID       string        `json:"id"`
	URL      string        `json:"url"`
	Username string        `json:"username"`
	Password safety.Masked `json:"password"`
}

func toView(c Credential) View {
	return View{ID: c.ID, URL: c.URL, Username: c.Username, Password: safety.Mask(c.Password)}
}

// Store persists registry credentials for an organization.
type Store interface {
	Create(ctx context.Context, orgID, url, username, password string) (Credential, error)
	List(ctx context.Context, orgID string) ([]Credential, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Store Store
}

// Register adds registry_create and registry_list to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	createSpec := domain.Spec("registry.registry_create", "registry.registry", "Register a container image registry credential",
		`{"type":"object","required":["url","username","password"],"properties":{"url":{"type":"string"},"username":{"type":"string"},"password":{"type":"string"}}}`,
		domain.RequiresApproval("medium"))
	if err := r.Register(createSpec, deps.create); err != nil {
		return err
	}

	listSpec := domain.Spec("registry.registry_list", "registry.registry", "List the organization's registry credentials",
		`{"type":"object","properties":{}}`, domain.ReadOnly)
	return r.Register(listSpec, deps.list)
}

type createPayload struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (d Deps) create(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p createPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	c, err := d.Store.Create(ctx, string(tc.OrgID), p.URL, p.Username, p.Password)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(toView(c))
	return b, nil, err
}

func (d Deps) list(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	creds, err := d.Store.List(ctx, string(tc.OrgID))
	if err != nil {
		return nil, nil, err
	}
	views := make([]View, 0, len(creds))
	for _, c := range creds {
		views = append(views, toView(c))
	}
	b, err := json.Marshal(struct {
		Credentials []View `json:"credentials"`
	}{Credentials: views})
	return b, nil, err
}

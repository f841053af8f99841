// Package port implements port_expose and port_close: network port CRUD
// against an application's exposed-port set.
package port

import (
	"context"
	"encoding/json"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Binding is one exposed port mapping.
type Binding struct {
	ApplicationID string `json:"applicationId"`
	HostPort      int    `json:"hostPort"`
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

// Store manages an application's exposed port set.
type Store interface {
	Expose(ctx context.Context, orgID string, b Binding) (Binding, error)
	Close(ctx context.Context, orgID, applicationID string, hostPort int) error
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Store Store
}

// Register adds port_expose and port_close to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	exposeSpec := domain.Spec("port.port_expose", "port.port", "Expose a container port on the host",
		`{"type":"object","required":["applicationId","hostPort","containerPort"],"properties":{"applicationId":{"type":"string"},"hostPort":{"type":"integer"},"containerPort":{"type":"integer"},"protocol":{"type":"string"}}}`,
		domain.RequiresApproval("medium"))
	if err := r.Register(exposeSpec, deps.expose); err != nil {
		return err
	}

	closeSpec := domain.Spec("port.port_close", "port.port", "Close a previously exposed host port",
		`{"type":"object","required":["applicationId","hostPort"],"properties":{"applicationId":{"type":"string"},"hostPort":{"type":"integer"}}}`,
		domain.RequiresApproval("medium"))
	return r.Register(closeSpec, deps.close)
}

func (d Deps) expose(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var b Binding
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, nil, err
	}
	if b.Protocol == "" {
		b.Protocol = "tcp"
	}
	created, err := d.Store.Expose(ctx, string(tc.OrgID), b)
	if err != nil {
		return nil, nil, err
	}
	out, err := json.Marshal(created)
	return out, nil, err
}

type closePayload struct {
	ApplicationID string `json:"applicationId"`
	HostPort      int    `json:"hostPort"`
}

func (d Deps) close(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p closePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := d.Store.Close(ctx, string(tc.OrgID), p.ApplicationID, p.HostPort); err != nil {
		return nil, nil, err
	}
	out, err := json.Marshal(struct {
		Closed bool `json:"closed"`
	}{Closed: true})
	return out, nil, err
}

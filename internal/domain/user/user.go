// Package user implements user_invite and user_remove: organization
// membership management. user_remove is destructive and always carries
// RiskHigh/RequiresApproval, matching the registry's destructive-name
// linter for its verb.
package user

import (
	"context"
	"encoding/json"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// Membership is an organization membership record.
type Membership struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Store manages organization membership.
type Store interface {
	Invite(ctx context.Context, orgID, email, role string) (Membership, error)
	Remove(ctx context.Context, orgID, userID string) error
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Store Store
}

// Register adds user_invite and user_remove to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	inviteSpec := domain.Spec("user.user_invite", "user.user", "Invite a user to join the organization",
		`{"type":"object","required":["email","role"],"properties":{"email":{"type":"string"},"role":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskMedium))
	if err := r.Register(inviteSpec, deps.invite); err != nil {
		return err
	}

	removeSpec := domain.Spec("user.user_remove", "user.user", "Remove a user's membership from the organization",
		`{"type":"object","required":["userId"],"properties":{"userId":{"type":"string"}}}`,
		domain.RequiresApproval(tools.RiskHigh))
	return r.Register(removeSpec, deps.remove)
}

type invitePayload struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (d Deps) invite(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p invitePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	m, err := d.Store.Invite(ctx, string(tc.OrgID), p.Email, p.Role)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(m)
	return b, nil, err
}

type removePayload struct {
	UserID string `json:"userId"`
}

func (d Deps) remove(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p removePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := d.Store.Remove(ctx, string(tc.OrgID), p.UserID); err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(struct {
		Removed bool `json:"removed"`
	}{Removed: true})
	return b, nil, err
}

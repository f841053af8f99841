// Package notification implements notification_create and
// notification_list. A notification's delivery target (a webhook URL or
// email address) is stored as a safety.Secret and only ever projected through
// safety.Mask in a tool result, so listing notifications never leaks
// delivery secrets back to the model.
package notification

import (
	"context"
	"encoding/json"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// Channel is the delivery channel kind.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelEmail   Channel = "email"
)

// Notification is the persisted record. Target holds the webhook URL or
// email address as a secret: notification_list only ever returns its
// Masked projection.
type Notification struct {
	ID      string
	Channel Channel
	Target  safety.Secret[string]
}

// View is the tool-facing projection of a Notification.
type View struct {
	ID      string        `json:"id"`
	Channel Channel       `json:"channel"`
	Target  safety.Masked `json:"target"`
}

func toView(n Notification) View {
	return View{ID: n.ID, Channel: n.Channel, Target: safety.Mask(n.Target)}
}

// Store persists notifications for an organization.
type Store interface {
	Create(ctx context.Context, orgID string, channel Channel, target string) (Notification, error)
	List(ctx context.Context, orgID string) ([]Notification, error)
}

// Deps holds the dependencies Register closes over.
type Deps struct {
	Store Store
}

// Register adds notification_create and notification_list to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	createSpec := domain.Spec("notification.notification_create", "notification.notification", "Create a notification delivery channel",
		`{"type":"object","required":["channel","target"],"properties":{"channel":{"type":"string","enum":["webhook","email"]},"target":{"type":"string"}}}`,
		domain.RequiresApproval("low"))
	if err := r.Register(createSpec, deps.create); err != nil {
		return err
	}

	listSpec := domain.Spec("notification.notification_list", "notification.notification", "List the organization's notification channels",
		`{"type":"object","properties":{}}`, domain.ReadOnly)
	return r.Register(listSpec, deps.list)
}

type createPayload struct {
	Channel Channel `json:"channel"`
	Target  string  `json:"target"`
}

func (d Deps) create(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p createPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	n, err := d.Store.Create(ctx, string(tc.OrgID), p.Channel, p.Target)
	if err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(toView(n))
	return b, nil, err
}

func (d Deps) list(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	notifications, err := d.Store.List(ctx, string(tc.OrgID))
	if err != nil {
		return nil, nil, err
	}
	views := make([]View, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, toView(n))
	}
	b, err := json.Marshal(struct {
		Notifications []View `json:"notifications"`
	}{Notifications: views})
	return b, nil, err
}

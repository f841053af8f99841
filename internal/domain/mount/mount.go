// Package mount implements mount_create: validates a candidate bind-mount
// host path against the organization's allowlist before creating the mount
// record (S2 scenario — a rejected path returns SuggestedNextSteps so a
// client can offer one-click remediation), and
// org_bind_mount_allowlist_update, the remediation tool that
// SuggestedNextSteps retries through.
package mount

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infrabay/opscore/internal/domain"
	"github.com/infrabay/opscore/internal/domain/deployer"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

const confirmMountChange = "CONFIRM_MOUNT_CHANGE"

// Mount is the created bind-mount record.
type Mount struct {
	ID          string `json:"id"`
	ServiceType string `json:"serviceType"`
	ServiceID   string `json:"serviceId"`
	Type        string `json:"type"`
	MountPath   string `json:"mountPath"`
	HostPath    string `json:"hostPath,omitempty"`
	VolumeName  string `json:"volumeName,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
}

// AllowlistSource supplies the organization's bind-mount allowlist,
// persists created mounts, and accepts allowlist updates from the
// remediation flow.
type AllowlistSource interface {
	AllowedPrefixes(ctx context.Context, orgID string) ([]string, error)
	AddAllowedPrefixes(ctx context.Context, orgID string, prefixes []string) error
	CreateMount(ctx context.Context, orgID string, m Mount) (Mount, error)
}

// Deps holds the dependencies Register closes over. Deployer triggers the
// redeploy mount_create fires when apply=true and the mount is created
// successfully.
type Deps struct {
	Source   AllowlistSource
	Deployer deployer.Deployer
}

// Register adds mount_create and org_bind_mount_allowlist_update to r.
func Register(r *toolregistry.Registry, deps Deps) error {
	createSpec := domain.Spec("mount.mount_create", "mount.mount",
		"Create a file, volume, or bind mount for a service; bind mounts are checked against the organization's host-path allowlist",
		fmt.Sprintf(`{"type":"object","required":["serviceType","serviceId","type","mountPath","confirm"],"properties":{"serviceType":{"type":"string"},"serviceId":{"type":"string"},"type":{"type":"string","enum":["bind","volume","file"]},"mountPath":{"type":"string"},"hostPath":{"type":"string"},"volumeName":{"type":"string"},"filePath":{"type":"string"},"content":{"type":"string"},"apply":{"type":"boolean"},"confirm":{"type":"string","const":%q}}}`, confirmMountChange),
		domain.RequiresConfirm(tools.RiskHigh, confirmMountChange))
	if err := r.Register(createSpec, deps.create); err != nil {
		return err
	}

	allowlistSpec := domain.Spec("mount.org_bind_mount_allowlist_update", "mount.mount",
		"Add host-path prefixes to the organization's bind-mount allowlist",
		fmt.Sprintf(`{"type":"object","required":["addPrefixes","confirm"],"properties":{"addPrefixes":{"type":"array","items":{"type":"string"}},"confirm":{"type":"string","const":%q}}}`, safety.ConfirmBindMountAllowlistUpdate),
		domain.RequiresConfirm(tools.RiskHigh, safety.ConfirmBindMountAllowlistUpdate))
	return r.Register(allowlistSpec, deps.updateAllowlist)
}

type createPayload struct {
	ServiceType string `json:"serviceType"`
	ServiceID   string `json:"serviceId"`
	Type        string `json:"type"`
	MountPath   string `json:"mountPath"`
	HostPath    string `json:"hostPath"`
	VolumeName  string `json:"volumeName"`
	FilePath    string `json:"filePath"`
	Content     string `json:"content"`
	Apply       bool   `json:"apply"`
	Confirm     string `json:"confirm"`
}

func (d Deps) create(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p createPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral(confirmMountChange, p.Confirm); err != nil {
		return nil, nil, err
	}

	if p.Type == "bind" {
		allowed, err := d.Source.AllowedPrefixes(ctx, string(tc.OrgID))
		if err != nil {
			return nil, nil, err
		}
		if err := safety.CheckBindMountPath(p.HostPath, allowed, "mount.mount_create", map[string]any{
			"serviceType": p.ServiceType,
			"serviceId":   p.ServiceID,
			"type":        p.Type,
			"mountPath":   p.MountPath,
			"hostPath":    p.HostPath,
			"apply":       p.Apply,
			"confirm":     p.Confirm,
		}); err != nil {
			return nil, nil, err
		}
	}

	created, err := d.Source.CreateMount(ctx, string(tc.OrgID), Mount{
		ServiceType: p.ServiceType,
		ServiceID:   p.ServiceID,
		Type:        p.Type,
		MountPath:   p.MountPath,
		HostPath:    p.HostPath,
		VolumeName:  p.VolumeName,
		FilePath:    p.FilePath,
	})
	if err != nil {
		return nil, nil, err
	}

	var dep *deployer.Deployment
	if p.Apply {
		triggered, err := d.Deployer.Redeploy(ctx, p.ServiceType, p.ServiceID)
		if err != nil {
			return nil, nil, fmt.Errorf("redeploy %s %s after mount change: %w", p.ServiceType, p.ServiceID, err)
		}
		dep = &triggered
	}

	b, err := json.Marshal(struct {
		Mount      Mount                `json:"mount"`
		Deployment *deployer.Deployment `json:"deployment,omitempty"`
	}{Mount: created, Deployment: dep})
	return b, nil, err
}

type allowlistUpdatePayload struct {
	AddPrefixes []string `json:"addPrefixes"`
	Confirm     string   `json:"confirm"`
}

func (d Deps) updateAllowlist(ctx context.Context, tc toolregistry.ToolContext, payload json.RawMessage) (json.RawMessage, []*toolregistry.ServerDataItem, error) {
	var p allowlistUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, err
	}
	if err := safety.RequireConfirmLiteral(safety.ConfirmBindMountAllowlistUpdate, p.Confirm); err != nil {
		return nil, nil, err
	}
	if err := d.Source.AddAllowedPrefixes(ctx, string(tc.OrgID), p.AddPrefixes); err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(struct {
		Updated bool `json:"updated"`
	}{Updated: true})
	return b, nil, err
}

package safety

import (
	"fmt"
	"path"
	"strings"
)

// BindMountRejected is returned by CheckBindMountPath when a candidate host
// path falls outside every allowed prefix. SuggestedNextSteps is consumed by
// the agent loop to offer a one-click remediation: update the allowlist,
// then retry the original tool call with the same arguments.
type BindMountRejected struct {
	Path               string
	SuggestedNextSteps []SuggestedStep
}

// SuggestedStep describes one remediation action a client can offer the
// user after a BindMountRejected failure.
type SuggestedStep struct {
	Tool        string
	Description string
	Args        map[string]any
}

func (e *BindMountRejected) Error() string {
	return fmt.Sprintf("bind-mount path %q is not under an allowed prefix", e.Path)
}

// CheckBindMountPath admits candidatePath iff, after POSIX normalization, it
// equals or is a strict descendant of at least one prefix in allowPrefixes.
// On rejection the returned error carries a suggestedNextSteps array
// describing the allowlist update call and a retry of the original tool
// with the same args.
func CheckBindMountPath(candidatePath string, allowPrefixes []string, retryTool string, retryArgs map[string]any) error {
	normalized := path.Clean(candidatePath)
	for _, prefix := range allowPrefixes {
		cleanPrefix := path.Clean(prefix)
		if normalized == cleanPrefix || strings.HasPrefix(normalized, cleanPrefix+"/") {
			return nil
		}
	}
	return &BindMountRejected{
		Path: normalized,
		SuggestedNextSteps: []SuggestedStep{
			{
				Tool:        "mount.org_bind_mount_allowlist_update",
				Description: fmt.Sprintf("Add %q to the organization's bind-mount allowlist", normalized),
				Args:        map[string]any{"addPrefixes": []string{normalized}, "confirm": ConfirmBindMountAllowlistUpdate},
			},
			{
				Tool:        retryTool,
				Description: "Retry the original tool call once the prefix is allowed",
				Args:        retryArgs,
			},
		},
	}
}

// ConfirmBindMountAllowlistUpdate is the confirm-literal gating
// org_bind_mount_allowlist_update, the tool CheckBindMountPath's remediation
// suggests retrying through.
const ConfirmBindMountAllowlistUpdate = "CONFIRM_BIND_MOUNT_ALLOWLIST_UPDATE"

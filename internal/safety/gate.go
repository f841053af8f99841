// Package safety implements the reusable gates tool implementations compose
// inside their execute bodies: organization membership checks, resource-org
// binding, confirm-literal gating, the bind-mount allowlist, the SQL
// read/write classifier, shell quoting, output truncation, and secret
// masking. None of these carry approval semantics themselves — they decide
// whether a call is even well-formed/authorized before the registry's
// approval/execution protocol runs.
package safety

import "fmt"

// Membership is the (user, organization) relationship a tool call runs
// under. Callers obtain one by loading the row for ctx.OrgID/ctx.UserID;
// absence is the caller's domain not-found error, not this package's
// concern.
type Membership struct {
	UserID string
	OrgID  string
	Role   string
}

// RoleOwner is the organization role required by RequireOrgOwner.
const RoleOwner = "owner"

// ErrUnauthorized is returned by the org gates on a membership/role
// mismatch. Callers translate it into the UNAUTHORIZED result envelope.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string { return e.Message }

// RequireOrgOwner requires m.Role == RoleOwner, failing closed.
func RequireOrgOwner(m Membership) error {
	if m.Role != RoleOwner {
		return &ErrUnauthorized{Message: "Only organization owner may perform this action"}
	}
	return nil
}

// RequireResourceOrg compares a loaded resource's owning organization
// against the caller's organization, returning ErrUnauthorized on mismatch
// so callers never need to leak the real resource in the error payload.
func RequireResourceOrg(callerOrgID, resourceOrgID string) error {
	if callerOrgID == "" || resourceOrgID == "" || callerOrgID != resourceOrgID {
		return &ErrUnauthorized{Message: "resource does not belong to the caller's organization"}
	}
	return nil
}

// RequireConfirmLiteral implements the confirm-literal gate: destructive or
// irreversible tools declare a `confirm` field constrained to a fixed
// literal (e.g. "CONFIRM_VOLUME_BACKUP_CHANGE"); a mismatch is rejected
// before the tool's execute body runs.
func RequireConfirmLiteral(want, got string) error {
	if got != want {
		return fmt.Errorf("confirm literal mismatch: expected %q", want)
	}
	return nil
}

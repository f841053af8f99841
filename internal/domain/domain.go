// Package domain is the parent of the tool-contract packages: one package
// per toolset (project, application, compose, postgres, mysql, mariadb,
// mongodb, redisdb, mount, port, notification, registry, githubprovider,
// schedule, swarm, user, backup, volumebackup, sshkey, stripe). Each
// toolset package exposes a Register(*toolregistry.Registry, Deps) error
// that builds its tools.ToolSpec entries and registers a toolregistry.Handler
// closure over its own dependency struct; nothing here or in the toolset
// packages holds process-wide state.
package domain

import (
	"encoding/json"

	"github.com/infrabay/opscore/internal/tools"
)

// Spec fills in the ToolSpec fields every toolset tool needs: a payload
// schema, the approval policy, and the toolset routing key. Toolset packages
// call this instead of constructing tools.ToolSpec literals so the
// registration-linter-relevant fields (Name, Approval) are never typo'd
// across ~20 packages.
func Spec(name tools.Ident, toolset, description, payloadSchema string, approval tools.ApprovalPolicy) tools.ToolSpec {
	return tools.ToolSpec{
		Name:        name,
		Toolset:     toolset,
		Description: description,
		Payload:     tools.TypeSpec{Name: string(name) + "_payload", Schema: []byte(payloadSchema)},
		Approval:    approval,
	}
}

// ReadOnly is the approval policy shared by every low-risk, no-approval
// tool (list/get-style calls).
var ReadOnly = tools.ApprovalPolicy{RiskLevel: tools.RiskLow}

// RequiresApproval builds the approval policy for a mutating tool at the
// given risk level.
func RequiresApproval(risk tools.RiskLevel) tools.ApprovalPolicy {
	return tools.ApprovalPolicy{RiskLevel: risk, RequiresApproval: true}
}

// RequiresConfirm builds the approval policy for the most destructive
// tools, which additionally require the caller to echo confirmLiteral back
// in the approval payload (the confirm-literal gate, enforced by the tool's
// execute body via safety.RequireConfirmLiteral).
func RequiresConfirm(risk tools.RiskLevel, confirmLiteral string) tools.ApprovalPolicy {
	return tools.ApprovalPolicy{RiskLevel: risk, RequiresApproval: true, ConfirmLiteral: confirmLiteral}
}

// result marshals v into a tool result payload. Handlers return this
// directly as their (json.RawMessage, error) pair alongside a nil
// server-data slice.
func result(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// decode unmarshals a tool payload into dst. The registry has already
// validated payload against the compiled JSON Schema before the handler
// runs, so a decode failure here would indicate the schema and the Go
// struct have drifted apart, not a caller error.
func decode(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return json.Unmarshal(payload, dst)
}

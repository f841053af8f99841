package agentloop

// domaintools.go bridges a toolregistry.Registry (the tool catalog built by
// internal/domain's per-system packages: application, postgres, mount,
// backup, and the rest) into this runtime as one ToolsetRegistration per
// toolset. Without this bridge the registry and the runtime are two
// disconnected tool catalogs: the registry's tools.ToolSpec entries (and the
// ApprovalPolicy each carries) would never reach r.toolSpecs, so
// confirmationPlan's ApprovalPolicy fallback and ExecuteToolActivity's
// dispatch would have nothing of this repo's domain to operate on.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/infrabay/opscore/internal/agentloop/planner"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
	"github.com/infrabay/opscore/internal/tools"
)

// RegisterToolRegistry registers every tool in reg with r, grouped into one
// ToolsetRegistration per distinct tools.ToolSpec.Toolset value. orgOf
// resolves the organization owning a run; the registry's handlers are
// org-scoped (toolregistry.ToolContext.OrgID) but a planner.ToolRequest only
// carries a RunID, so the caller supplies the mapping from one to the other
// (typically a lookup against the session/run store). A nil orgOf registers
// every call with an empty OrgID, which is only appropriate for a
// single-tenant deployment.
func RegisterToolRegistry(r *Runtime, reg *toolregistry.Registry, orgOf func(runID string) ids.OrgID) error {
	byToolset := make(map[string][]tools.ToolSpec)
	for _, spec := range reg.List() {
		byToolset[spec.Toolset] = append(byToolset[spec.Toolset], spec)
	}
	for toolset, specs := range byToolset {
		ts := ToolsetRegistration{
			Name:    toolset,
			Specs:   specs,
			Execute: registryExecutor(reg, orgOf),
		}
		if err := r.RegisterToolset(ts); err != nil {
			return fmt.Errorf("register toolset %q: %w", toolset, err)
		}
	}
	return nil
}

// registryExecutor adapts toolregistry.Registry.Execute's ToolResultMessage
// envelope (result JSON plus a structured *ToolError, possibly carrying
// SuggestedNextSteps) into a planner.ToolResult.
func registryExecutor(reg *toolregistry.Registry, orgOf func(runID string) ids.OrgID) func(context.Context, *planner.ToolRequest) (*planner.ToolResult, error) {
	return func(ctx context.Context, call *planner.ToolRequest) (*planner.ToolResult, error) {
		payload, err := asRawPayload(call.Payload)
		if err != nil {
			return &planner.ToolResult{Name: call.Name, ToolCallID: call.ToolCallID, Error: err}, nil
		}

		var orgID ids.OrgID
		if orgOf != nil {
			orgID = orgOf(call.RunID)
		}
		tc := toolregistry.ToolContext{
			OrgID:      orgID,
			RunID:      call.RunID,
			SessionID:  call.SessionID,
			ToolCallID: call.ToolCallID,
		}

		msg := reg.Execute(ctx, tc, call.Name, payload, call.ToolCallID)
		if msg.Error != nil {
			return &planner.ToolResult{
				Name:       call.Name,
				ToolCallID: call.ToolCallID,
				Error:      fmt.Errorf("%s: %s", msg.Error.Code, msg.Error.Message),
			}, nil
		}
		return &planner.ToolResult{
			Name:       call.Name,
			ToolCallID: call.ToolCallID,
			Result:     msg.Result,
		}, nil
	}
}

// asRawPayload normalizes a planner.ToolRequest's Payload (a
// map[string]any, a json.RawMessage, or nil) to canonical JSON for
// toolregistry.Registry.Execute, which validates and decodes raw bytes.
func asRawPayload(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode tool payload: %w", err)
		}
		return b, nil
	}
}

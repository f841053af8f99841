package toolregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/safety"
	"github.com/infrabay/opscore/internal/tools"
)

type (
	// ToolContext carries the organization/run-scoped execution context passed
	// to every tool handler. Handlers must never consult a package-level
	// global in its place.
	ToolContext struct {
		OrgID      ids.OrgID
		RunID      string
		SessionID  string
		ToolCallID string
	}

	// Handler executes a single tool call against an already-validated
	// payload and returns the raw JSON result plus any server-only data
	// items to attach to the result envelope.
	Handler func(ctx context.Context, tc ToolContext, payload json.RawMessage) (json.RawMessage, []*ServerDataItem, error)

	registered struct {
		spec    tools.ToolSpec
		handler Handler
		schema  *jsonschema.Schema
	}

	// Registry is the name-unique tool catalog (C2). It validates tool
	// payloads against the compiled JSON Schema advertised alongside each
	// tool's ToolSpec, enforces the destructive-name/RequiresApproval
	// registration invariant, and dispatches to the registered Handler.
	Registry struct {
		mu      sync.RWMutex
		entries map[tools.Ident]*registered
	}
)

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[tools.Ident]*registered)}
}

// Register adds a tool to the catalog. It fails closed: a destructively
// named tool (per tools.IsDestructiveName) that does not declare
// Approval.RequiresApproval is rejected rather than silently admitted, and a
// duplicate tool name is rejected rather than overwriting the prior
// registration.
func (r *Registry) Register(spec tools.ToolSpec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("toolregistry: register: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("toolregistry: register %q: handler is required", spec.Name)
	}
	if tools.IsDestructiveName(spec.Name.String()) && !spec.Approval.RequiresApproval {
		return fmt.Errorf("toolregistry: register %q: destructive tool name must set Approval.RequiresApproval", spec.Name)
	}

	var compiled *jsonschema.Schema
	if len(spec.Payload.Schema) > 0 {
		s, err := compileSchema(spec.Name.String(), spec.Payload.Schema)
		if err != nil {
			return fmt.Errorf("toolregistry: register %q: %w", spec.Name, err)
		}
		compiled = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[spec.Name]; exists {
		return fmt.Errorf("toolregistry: register %q: tool already registered", spec.Name)
	}
	r.entries[spec.Name] = &registered{spec: spec, handler: handler, schema: compiled}
	return nil
}

// Lookup resolves a tool's spec by name.
func (r *Registry) Lookup(name tools.Ident) (tools.ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return tools.ToolSpec{}, false
	}
	return e.spec, true
}

// List returns every registered tool spec, sorted by name for stable
// advertisement to planners.
func (r *Registry) List() []tools.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tools.ToolSpec, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByToolset returns every registered tool spec belonging to toolset,
// sorted by name.
func (r *Registry) ListByToolset(toolset string) []tools.ToolSpec {
	all := r.List()
	out := all[:0:0]
	for _, spec := range all {
		if spec.Toolset == toolset {
			out = append(out, spec)
		}
	}
	return out
}

// RequiresApproval reports whether name must pass through the pending-
// approval state before execution. Unknown tools fail closed: true, since a
// caller (an approvals UI, the chat pipeline) must never treat a tool it
// can't find in the catalog as safe to auto-execute.
func (r *Registry) RequiresApproval(name tools.Ident) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return true
	}
	return e.spec.Approval.RequiresApproval
}

// GetRiskLevel reports name's declared blast radius. Unknown tools fail
// closed: tools.RiskHigh, for the same reason RequiresApproval fails closed.
func (r *Registry) GetRiskLevel(name tools.Ident) tools.RiskLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return tools.RiskHigh
	}
	return e.spec.Approval.RiskLevel
}

// Execute validates payload against the tool's compiled JSON Schema, then
// dispatches to the registered Handler. It returns a NewToolResultMessage
// (or an error-shaped ToolResultMessage) ready to publish to a per-call
// result stream; ValidationIssues can be used upstream by callers that need
// to build a planner RetryHint from a failed validation.
func (r *Registry) Execute(ctx context.Context, tc ToolContext, name tools.Ident, payload json.RawMessage, toolUseID string) ToolResultMessage {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return NewToolResultErrorMessage(toolUseID, "not_found", fmt.Sprintf("unknown tool %q", name))
	}

	if e.schema != nil {
		var doc any
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return NewToolResultErrorMessage(toolUseID, "invalid_arguments", fmt.Sprintf("decode payload: %v", err))
		}
		if err := e.schema.Validate(doc); err != nil {
			issues := ValidationIssues(err)
			if issues == nil {
				issues = []*tools.FieldIssue{{Field: "", Constraint: "invalid_field_type"}}
			}
			return NewToolResultErrorMessageWithIssues(toolUseID, "invalid_arguments", err.Error(), issues)
		}
	}

	result, serverData, err := e.handler(ctx, tc, payload)
	if err != nil {
		var rejected *safety.BindMountRejected
		if errors.As(err, &rejected) {
			return NewToolResultErrorMessageWithSteps(toolUseID, "bind_mount_rejected", err.Error(), suggestedStepsFrom(rejected.SuggestedNextSteps))
		}
		return NewToolResultErrorMessage(toolUseID, "internal", err.Error())
	}
	return NewToolResultMessageWithServerData(toolUseID, result, serverData)
}

// suggestedStepsFrom adapts safety.SuggestedStep (the safety package's
// gate-agnostic remediation shape) into the wire-level SuggestedNextStep.
func suggestedStepsFrom(steps []safety.SuggestedStep) []SuggestedNextStep {
	out := make([]SuggestedNextStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, SuggestedNextStep{Tool: s.Tool, Description: s.Description, Params: s.Args})
	}
	return out
}

func compileSchema(name string, schemaBytes []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schemaBytes, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Package policy implements the per-turn tool allowlist engine that the
// agent execution loop consults before every planner call: which tools
// remain available this turn, how remaining call/approval budgets are
// tracked, and how a failed step's retry hint narrows the next turn's
// candidate set. The per-call safety gates a tool handler itself enforces
// (org/resource ownership, bind-mount allowlist, SQL classification,
// confirm-literal gating, output truncation, secret masking) live in
// internal/safety instead; policy and safety compose rather than overlap.
package policy

import (
	"context"
	"time"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/tools"
)

type (
	// Engine decides which tools remain available to the planner on each turn
	// of the agent execution loop. The loop invokes Decide before each planner
	// call (start and resume) to compute the allowlist and update caps.
	Engine interface {
		// Decide evaluates policy constraints and returns the decision for
		// this turn. Implementations should be fast; heavy external calls
		// should be cached or precomputed.
		Decide(ctx context.Context, input Input) (Decision, error)
	}

	// Input groups the information made available to the policy engine for a
	// single turn decision.
	Input struct {
		// OrgID is the organization the run belongs to.
		OrgID ids.OrgID
		// RunID identifies the current agent execution loop run.
		RunID ids.RunID
		// Tools lists all candidate tools allowed by registration.
		Tools []ToolMetadata
		// RetryHint carries planner guidance after a failed step, if any.
		RetryHint *RetryHint
		// RemainingCaps reflects the current execution budgets.
		RemainingCaps CapsState
		// Requested enumerates tools explicitly requested for this turn.
		Requested []tools.Ident
		// Labels are arbitrary key/value pairs propagated to policy decisions.
		Labels map[string]string
	}

	// Decision captures the outcome of a policy evaluation for a turn.
	Decision struct {
		// AllowedTools is the final allowlist for this turn.
		AllowedTools []tools.Ident
		// Caps carries the updated caps enforced for this and subsequent turns.
		Caps CapsState
		// DisableTools signals that no further tool calls are permitted.
		DisableTools bool
		// Labels annotates downstream telemetry/events.
		Labels map[string]string
		// Metadata captures policy-specific diagnostic information.
		Metadata map[string]any
	}

	// ToolMetadata describes a candidate tool available to the agent loop.
	ToolMetadata struct {
		ID          tools.Ident
		Name        string
		Description string
		Tags        []string
		RiskLevel   tools.RiskLevel
	}

	// CapsState tracks remaining execution budgets for a run.
	CapsState struct {
		MaxToolCalls                        int
		RemainingToolCalls                  int
		MaxConsecutiveFailedToolCalls       int
		RemainingConsecutiveFailedToolCalls int
		ExpiresAt                           time.Time
	}

	// RetryHint communicates planner guidance after a tool failure so policy
	// engines can adjust allowlists or caps.
	RetryHint struct {
		Reason             RetryReason
		Tool               tools.Ident
		RestrictToTool     bool
		MissingFields      []string
		ClarifyingQuestion string
		Message            string
	}
)

// RetryReason categorizes planner failures communicated via RetryHint.
type RetryReason string

const (
	RetryReasonInvalidArguments  RetryReason = "invalid_arguments"
	RetryReasonMissingFields     RetryReason = "missing_fields"
	RetryReasonMalformedResponse RetryReason = "malformed_response"
	RetryReasonTimeout           RetryReason = "timeout"
	RetryReasonRateLimited       RetryReason = "rate_limited"
	RetryReasonToolUnavailable   RetryReason = "tool_unavailable"
)

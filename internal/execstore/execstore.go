// Package execstore tracks pending and completed tool executions across the
// two-phase approval/execution protocol: a ToolExecution is created in
// StatusPending when the dispatcher decides a tool call needs approval,
// transitions to StatusApproved/StatusRejected when a user acts on it, and
// finally to StatusSucceeded/StatusFailed once the tool actually runs.
package execstore

import (
	"context"
	"errors"
	"time"

	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/tools"
)

// Status is the lifecycle state of a ToolExecution.
type Status string

const (
	// StatusPending awaits a user approval/rejection decision.
	StatusPending Status = "pending"
	// StatusApproved has been approved but not yet executed.
	StatusApproved Status = "approved"
	// StatusRejected was rejected and will never execute.
	StatusRejected Status = "rejected"
	// StatusExpired timed out waiting for a decision.
	StatusExpired Status = "expired"
	// StatusSucceeded executed and returned a result.
	StatusSucceeded Status = "succeeded"
	// StatusFailed executed and returned an error.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is a final state that Wait callers
// should stop waiting on.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// ToolExecution is the persisted record of a single dispatched tool call,
// from the moment the registry validates its payload through approval and
// final result.
type ToolExecution struct {
	ID          ids.ExecutionID
	OrgID       ids.OrgID
	RunID       ids.RunID
	ToolCallID  string
	Tool        tools.Ident
	RiskLevel   tools.RiskLevel
	Payload     []byte
	Status      Status
	Result      []byte
	Error       string
	RequestedBy string
	DecidedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ErrNotFound is returned by Store.Load when no execution exists for the
// given id.
var ErrNotFound = errors.New("execstore: execution not found")

// Store persists ToolExecution records across the approval/execution
// lifecycle. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new ToolExecution in StatusPending (or whatever
	// status the caller sets) and returns ErrNotFound's sibling only on
	// genuine storage failure, never when the id already exists (callers
	// are expected to generate unique ids).
	Create(ctx context.Context, exec ToolExecution) error
	// Load retrieves a ToolExecution by id, returning ErrNotFound when it
	// does not exist.
	Load(ctx context.Context, id ids.ExecutionID) (ToolExecution, error)
	// UpdateStatus transitions an execution to a new status, optionally
	// recording who decided (approve/reject) or the execution result/error.
	// Returns ErrNotFound when the execution does not exist.
	UpdateStatus(ctx context.Context, id ids.ExecutionID, mutate func(*ToolExecution)) error
	// ListPendingByRun returns every non-terminal execution for a run, in
	// creation order, used to resume a run after a process restart.
	ListPendingByRun(ctx context.Context, runID ids.RunID) ([]ToolExecution, error)
}

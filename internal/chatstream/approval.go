package chatstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/toolregistry"
)

// ErrAlreadyDecided is returned by ApproveExecution when the execution has
// already left StatusPending. The spec requires a second approval attempt on
// an already-decided execution to be a no-op success, so callers should treat
// this as informational rather than surfacing it as a request error.
var ErrAlreadyDecided = errors.New("chatstream: execution already decided")

// ApproveExecution records an operator's approve/reject decision for a
// pending tool execution and wakes anyone waiting on it via the notification
// bus. It does not itself execute the tool; ExecuteExecution does that once
// called with an Approved decision (the two are separate mutations per the
// out-of-band approval contract).
func (p *Pipeline) ApproveExecution(ctx context.Context, id ids.ExecutionID, approved bool, decidedBy string) error {
	exec, err := p.Executions.Load(ctx, id)
	if err != nil {
		return err
	}
	if exec.Status != execstore.StatusPending {
		return ErrAlreadyDecided
	}

	newStatus := execstore.StatusRejected
	if approved {
		newStatus = execstore.StatusApproved
	}
	if err := p.Executions.UpdateStatus(ctx, id, func(e *execstore.ToolExecution) {
		e.Status = newStatus
		e.DecidedBy = decidedBy
		e.UpdatedAt = p.now()
	}); err != nil {
		return err
	}
	return p.Approvals.Notify(ctx, id)
}

// ExecuteExecution invokes the tool for an approved execution via the tool
// registry and appends a tool-role message with the result to the owning
// conversation. Calling it on a rejected execution appends a "rejected by
// user" result instead of dispatching the tool, matching the agent loop's
// denial handling so both pipelines present identical transcripts for a
// declined tool call.
func (p *Pipeline) ExecuteExecution(ctx context.Context, id ids.ExecutionID, conversationID ids.ConversationID) (execstore.ToolExecution, error) {
	exec, err := p.Executions.Load(ctx, id)
	if err != nil {
		return execstore.ToolExecution{}, err
	}

	switch exec.Status {
	case execstore.StatusRejected:
		return p.appendRejection(ctx, exec, conversationID)
	case execstore.StatusApproved:
		return p.dispatch(ctx, exec, conversationID)
	case execstore.StatusSucceeded, execstore.StatusFailed:
		return exec, nil
	default:
		return execstore.ToolExecution{}, fmt.Errorf("chatstream: execution %q is not approved", id)
	}
}

func (p *Pipeline) dispatch(ctx context.Context, exec execstore.ToolExecution, conversationID ids.ConversationID) (execstore.ToolExecution, error) {
	msg := p.Registry.Execute(ctx, toolregistry.ToolContext{
		OrgID:      exec.OrgID,
		RunID:      string(exec.RunID),
		ToolCallID: exec.ToolCallID,
	}, exec.Tool, exec.Payload, exec.ToolCallID)

	status := execstore.StatusSucceeded
	var resultErr string
	if msg.Error != nil {
		status = execstore.StatusFailed
		resultErr = msg.Error.Message
	}

	if err := p.Executions.UpdateStatus(ctx, exec.ID, func(e *execstore.ToolExecution) {
		e.Status = status
		e.Result = msg.Result
		e.Error = resultErr
		e.UpdatedAt = p.now()
	}); err != nil {
		return execstore.ToolExecution{}, err
	}

	if err := p.Conversations.AppendMessage(ctx, convstore.Message{
		ID:             p.newID(),
		ConversationID: conversationID,
		Role:           convstore.RoleTool,
		Content:        string(msg.Result),
		ToolCalls:      []convstore.ToolCallRef{{ID: exec.ToolCallID, Name: string(exec.Tool), Arguments: exec.Payload}},
		CreatedAt:      p.now(),
		Status:         convstore.StatusSent,
	}); err != nil {
		return execstore.ToolExecution{}, err
	}

	exec.Status = status
	exec.Result = msg.Result
	exec.Error = resultErr
	return exec, nil
}

func (p *Pipeline) appendRejection(ctx context.Context, exec execstore.ToolExecution, conversationID ids.ConversationID) (execstore.ToolExecution, error) {
	result, _ := json.Marshal(map[string]string{"summary": "rejected by user"})
	if err := p.Conversations.AppendMessage(ctx, convstore.Message{
		ID:             p.newID(),
		ConversationID: conversationID,
		Role:           convstore.RoleTool,
		Content:        string(result),
		ToolCalls:      []convstore.ToolCallRef{{ID: exec.ToolCallID, Name: string(exec.Tool), Arguments: exec.Payload}},
		CreatedAt:      p.now(),
		Status:         convstore.StatusSent,
	}); err != nil {
		return execstore.ToolExecution{}, err
	}
	return exec, nil
}

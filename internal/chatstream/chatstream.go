// Package chatstream implements the single-turn chat streaming pipeline
// (C7): accept a user message, persist it, drive the configured LM over the
// conversation transcript and the advertised tool catalog, intercept tool
// calls (auto-executing low-risk ones and enqueueing an approval record for
// the rest), and stream everything back to the client as SSE.
//
// This is deliberately a simpler, single-request/single-response sibling of
// the agent execution loop (C8): one LM turn, no planner, no multi-step
// suspension state machine. Both sit on top of the same tool registry (C2),
// execution store (C5), conversation store (C9), and notification bus (C14).
package chatstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/sse"
	"github.com/infrabay/opscore/internal/telemetry"
	"github.com/infrabay/opscore/internal/tools"
	"github.com/infrabay/opscore/internal/toolregistry"
)

type (
	// ModelResolver looks up the model.Client configured for an agent
	// (`aiId` in the request). Callers typically back this with a small map
	// populated at startup from internal/config and internal/llm/* adapters.
	ModelResolver func(agentID ids.AgentID) (model.Client, error)

	// Clock returns the current time. Defaults to time.Now; overridable in
	// tests so CreatedAt/UpdatedAt timestamps are deterministic.
	Clock func() time.Time

	// IDGenerator returns a new unique identifier. Defaults to uuid.NewString.
	IDGenerator func() string

	// Pipeline wires the chat streaming pipeline's dependencies. All fields
	// are required except Clock, NewID, and Logger, which default to
	// time.Now, uuid.NewString, and a noop logger respectively.
	Pipeline struct {
		// Registry is the tool catalog (C2) consulted for tool definitions
		// advertised to the model and for dispatching auto-approved calls.
		Registry *toolregistry.Registry
		// Conversations persists the append-only message log (C9).
		Conversations convstore.Store
		// Executions tracks pending/completed tool executions (C5).
		Executions execstore.Store
		// Approvals wakes a suspended ExecuteExecution call once a decision
		// lands (C14); chatstream only uses Notify, not Wait, since a
		// single-turn stream never blocks on an approval transition itself
		// (control returns to the caller immediately per spec).
		Approvals ApprovalNotifier
		// Models resolves the LM client for the agent driving the turn.
		Models ModelResolver
		// MaxOutputTokens bounds the completion when the request does not
		// set it explicitly. Zero means leave the provider default.
		MaxOutputTokens int

		Clock  Clock
		NewID  IDGenerator
		Logger telemetry.Logger
	}

	// ApprovalNotifier is the subset of approvalbus.Bus the pipeline needs:
	// waking anyone polling/subscribing on an execution once its status
	// changes out of pending.
	ApprovalNotifier interface {
		Notify(ctx context.Context, executionID ids.ExecutionID) error
	}

	// ChatRequest is the input to HandleChat: `{conversationId, message,
	// aiId}` per the chat streaming pipeline contract, plus the identifiers
	// needed to scope tool dispatch.
	ChatRequest struct {
		OrgID          ids.OrgID
		ConversationID ids.ConversationID
		AgentID        ids.AgentID
		Message        string
		RequestedBy    string
	}
)

// ErrConversationRequired is returned when a ChatRequest has no ConversationID.
var ErrConversationRequired = errors.New("chatstream: conversation id is required")

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func (p *Pipeline) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

func (p *Pipeline) logger() telemetry.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return telemetry.NewNoopLogger()
}

// HandleChat drives one chat turn and writes its SSE events to w. It always
// returns nil for client-visible failures (an `event: error` or
// `event: stream-error` frame is written instead); a non-nil return
// indicates the SSE transport itself failed (the ResponseWriter broke) and
// the caller should treat the connection as dead.
func (p *Pipeline) HandleChat(ctx context.Context, w *sse.Writer, req ChatRequest) error {
	if req.ConversationID == "" {
		return writeStreamError(w, ErrConversationRequired)
	}

	if err := p.Conversations.AppendMessage(ctx, convstore.Message{
		ID:             p.newID(),
		ConversationID: req.ConversationID,
		Role:           convstore.RoleUser,
		Content:        req.Message,
		CreatedAt:      p.now(),
		Status:         convstore.StatusSent,
	}); err != nil {
		return writeStreamError(w, fmt.Errorf("persist user message: %w", err))
	}

	history, err := p.Conversations.ListMessages(ctx, req.ConversationID)
	if err != nil {
		return writeStreamError(w, fmt.Errorf("load transcript: %w", err))
	}

	assistantMsgID := p.newID()
	if err := p.Conversations.AppendMessage(ctx, convstore.Message{
		ID:             assistantMsgID,
		ConversationID: req.ConversationID,
		Role:           convstore.RoleAssistant,
		Status:         convstore.StatusSending,
		CreatedAt:      p.now(),
	}); err != nil {
		return writeStreamError(w, fmt.Errorf("start assistant message: %w", err))
	}

	client, err := p.Models(req.AgentID)
	if err != nil {
		return p.failAssistantMessage(ctx, w, req, assistantMsgID, err)
	}

	streamer, err := client.Stream(ctx, &model.Request{
		Messages: toModelMessages(history),
		Tools:    toToolDefinitions(p.Registry.List()),
		Stream:   true,
		MaxTokens: p.MaxOutputTokens,
	})
	if err != nil {
		return p.failAssistantMessage(ctx, w, req, assistantMsgID, err)
	}
	defer streamer.Close()

	t := &turn{pipeline: p, w: w, req: req, assistantMsgID: assistantMsgID}
	return t.drain(ctx, streamer)
}

// turn accumulates state for a single HandleChat invocation.
type turn struct {
	pipeline       *Pipeline
	w              *sse.Writer
	req            ChatRequest
	assistantMsgID string
	content        string
}

func (t *turn) drain(ctx context.Context, streamer model.Streamer) error {
	for {
		select {
		case <-ctx.Done():
			return t.abort(ctx)
		default:
		}

		chunk, err := streamer.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return t.finish(ctx)
			}
			return t.pipeline.failAssistantMessage(ctx, t.w, t.req, t.assistantMsgID, err)
		}

		switch chunk.Type {
		case model.ChunkTypeText:
			if chunk.Message == nil {
				continue
			}
			delta := textOf(chunk.Message)
			if delta == "" {
				continue
			}
			t.content += delta
			if err := t.pipeline.Conversations.UpdateMessage(ctx, t.req.ConversationID, t.assistantMsgID, func(m *convstore.Message) {
				m.Content = t.content
			}); err != nil {
				return err
			}
			if err := sendEvent(t.w, eventDelta, deltaPayload{Delta: delta}); err != nil {
				return err
			}

		case model.ChunkTypeToolCall:
			if chunk.ToolCall == nil {
				continue
			}
			if err := t.handleToolCall(ctx, *chunk.ToolCall); err != nil {
				return err
			}

		case model.ChunkTypeStop:
			// Handled uniformly by io.EOF above for every provider adapter
			// observed in this corpus; a bare stop chunk with no EOF still
			// falls through to the next Recv call.
		}
	}
}

func (t *turn) handleToolCall(ctx context.Context, call model.ToolCall) error {
	p := t.pipeline
	toolCallID := call.ID
	if toolCallID == "" {
		toolCallID = p.newID()
	}

	if err := sendEvent(t.w, eventToolCall, toolCallPayload{
		ToolCallID: toolCallID,
		ToolName:   string(call.Name),
		Arguments:  call.Payload,
	}); err != nil {
		return err
	}

	spec, ok := p.Registry.Lookup(call.Name)
	if !ok {
		return sendEvent(t.w, eventToolResult, toolResultPayload{
			ToolCallID: toolCallID,
			Status:     string(execstore.StatusFailed),
			Error:      &errorPayload{Message: fmt.Sprintf("unknown tool %q", call.Name)},
		})
	}

	if spec.Approval.RequiresApproval {
		return t.enqueueApproval(ctx, call, toolCallID, spec)
	}
	return t.executeNow(ctx, call, toolCallID)
}

func (t *turn) executeNow(ctx context.Context, call model.ToolCall, toolCallID string) error {
	p := t.pipeline
	msg := p.Registry.Execute(ctx, toolregistry.ToolContext{
		OrgID:      t.req.OrgID,
		SessionID:  string(t.req.ConversationID),
		ToolCallID: toolCallID,
	}, call.Name, call.Payload, toolCallID)

	if err := p.Conversations.AppendMessage(ctx, convstore.Message{
		ID:             p.newID(),
		ConversationID: t.req.ConversationID,
		Role:           convstore.RoleTool,
		Content:        string(msg.Result),
		ToolCalls:      []convstore.ToolCallRef{{ID: toolCallID, Name: string(call.Name), Arguments: call.Payload}},
		CreatedAt:      p.now(),
		Status:         convstore.StatusSent,
	}); err != nil {
		return err
	}

	payload := toolResultPayload{ToolCallID: toolCallID, Status: string(execstore.StatusSucceeded), Result: msg.Result}
	if msg.Error != nil {
		payload.Status = string(execstore.StatusFailed)
		payload.Error = &errorPayload{Code: msg.Error.Code, Message: msg.Error.Message}
	}
	return sendEvent(t.w, eventToolResult, payload)
}

func (t *turn) enqueueApproval(ctx context.Context, call model.ToolCall, toolCallID string, spec tools.ToolSpec) error {
	p := t.pipeline
	execID := ids.ExecutionID(p.newID())
	now := p.now()
	if err := p.Executions.Create(ctx, execstore.ToolExecution{
		ID:          execID,
		OrgID:       t.req.OrgID,
		RunID:       ids.RunID(t.req.ConversationID),
		ToolCallID:  toolCallID,
		Tool:        call.Name,
		RiskLevel:   spec.Approval.RiskLevel,
		Payload:     call.Payload,
		Status:      execstore.StatusPending,
		RequestedBy: t.req.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return err
	}

	result, _ := json.Marshal(map[string]any{"status": "pending_approval", "executionId": execID})
	return sendEvent(t.w, eventToolResult, toolResultPayload{
		ToolCallID:  toolCallID,
		Status:      string(execstore.StatusPending),
		ExecutionID: string(execID),
		Result:      result,
	})
}

func (t *turn) finish(ctx context.Context) error {
	p := t.pipeline
	if err := p.Conversations.UpdateMessage(ctx, t.req.ConversationID, t.assistantMsgID, func(m *convstore.Message) {
		m.Status = convstore.StatusSent
	}); err != nil {
		return err
	}
	return sendEvent(t.w, eventDone, donePayload{})
}

// abort marks the in-flight assistant message as sent with its partial
// content and closes the stream, per the chat pipeline's disconnect
// semantics: the client going away stops the LM read, not the persisted
// partial reply.
func (t *turn) abort(ctx context.Context) error {
	return t.pipeline.Conversations.UpdateMessage(ctx, t.req.ConversationID, t.assistantMsgID, func(m *convstore.Message) {
		m.Status = convstore.StatusSent
	})
}

func (p *Pipeline) failAssistantMessage(ctx context.Context, w *sse.Writer, req ChatRequest, assistantMsgID string, cause error) error {
	_ = p.Conversations.UpdateMessage(ctx, req.ConversationID, assistantMsgID, func(m *convstore.Message) {
		m.Status = convstore.StatusError
	})
	p.logger().Error(ctx, "chatstream: turn failed", "conversation_id", req.ConversationID, "error", cause.Error())
	return writeStreamError(w, cause)
}

func textOf(msg *model.Message) string {
	var out string
	for _, part := range msg.Parts {
		if tp, ok := part.(model.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

func toModelMessages(history []convstore.Message) []*model.Message {
	out := make([]*model.Message, 0, len(history))
	for _, m := range history {
		if m.Content == "" && len(m.ToolCalls) == 0 {
			continue
		}
		role := model.ConversationRoleUser
		switch m.Role {
		case convstore.RoleAssistant:
			role = model.ConversationRoleAssistant
		case convstore.RoleSystem:
			role = model.ConversationRoleSystem
		case convstore.RoleTool:
			role = model.ConversationRoleUser
		}
		out = append(out, &model.Message{Role: role, Parts: []model.Part{model.TextPart{Text: m.Content}}})
	}
	return out
}

func toToolDefinitions(specs []tools.ToolSpec) []*model.ToolDefinition {
	out := make([]*model.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		var schema any
		if len(s.Payload.Schema) > 0 {
			_ = json.Unmarshal(s.Payload.Schema, &schema)
		}
		out = append(out, &model.ToolDefinition{
			Name:        s.Name.String(),
			Description: s.Description,
			InputSchema: schema,
		})
	}
	return out
}

package chatstream

import (
	"encoding/json"

	"github.com/infrabay/opscore/internal/sse"
)

// SSE event names emitted by HandleChat, per the chat streaming pipeline
// contract: delta → tool-call → tool-result (repeated per model turn),
// terminated by exactly one of done, error, or stream-error.
const (
	eventDelta      = "delta"
	eventToolCall   = "tool-call"
	eventToolResult = "tool-result"
	eventDone       = "done"
	eventError      = "error"
	eventStreamErr  = "stream-error"
)

type (
	deltaPayload struct {
		Delta string `json:"delta"`
	}

	toolCallPayload struct {
		ToolCallID string          `json:"toolCallId"`
		ToolName   string          `json:"toolName"`
		Arguments  json.RawMessage `json:"arguments,omitempty"`
	}

	// toolResultPayload covers both the auto-executed case (Status
	// succeeded/failed, Result/Error populated) and the approval-pending
	// case (Status pending, ExecutionID set, Result carrying the
	// `{status: "pending_approval", executionId}` envelope the spec requires duplicate tool
	// results to replace idempotently by ToolCallID).
	toolResultPayload struct {
		ToolCallID  string          `json:"toolCallId"`
		Status      string          `json:"status"`
		ExecutionID string          `json:"executionId,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
		Error       *errorPayload   `json:"error,omitempty"`
	}

	errorPayload struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	}

	donePayload struct{}
)

func sendEvent(w *sse.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.SendJSON(event, data)
}

// writeStreamError emits an `event: stream-error` frame and returns nil: per
// HandleChat's contract, a client-visible failure is reported over SSE, not
// as a Go error, so the HTTP handler always finishes the response cleanly.
func writeStreamError(w *sse.Writer, cause error) error {
	data, _ := json.Marshal(errorPayload{Message: cause.Error()})
	_ = w.SendJSON(eventStreamErr, data)
	return nil
}

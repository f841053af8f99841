package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/infrabay/opscore/internal/chatstream"
	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
)

type decisionRequestBody struct {
	ConversationID string `json:"conversationId"`
	Approved       bool   `json:"approved"`
	DecidedBy      string `json:"decidedBy,omitempty"`
}

type decisionResponseBody struct {
	ExecutionID string          `json:"executionId"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// handleDecision records an operator's approve/reject decision for a pending
// tool execution and, once approved, immediately dispatches it: the two-phase
// approval/execution protocol is exposed here as a single request so callers
// don't need to orchestrate ApproveExecution and ExecuteExecution themselves.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		http.Error(w, "chat pipeline not configured", http.StatusNotImplemented)
		return
	}

	executionID := ids.ExecutionID(s.vars(r)["executionId"])
	if executionID == "" {
		http.Error(w, "executionId is required", http.StatusBadRequest)
		return
	}

	var body decisionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := s.Chat.ApproveExecution(r.Context(), executionID, body.Approved, body.DecidedBy)
	if err != nil && !errors.Is(err, chatstream.ErrAlreadyDecided) {
		if errors.Is(err, execstore.ErrNotFound) {
			http.Error(w, "execution not found", http.StatusNotFound)
			return
		}
		http.Error(w, "record decision: "+err.Error(), http.StatusInternalServerError)
		return
	}

	exec, err := s.Chat.ExecuteExecution(r.Context(), executionID, ids.ConversationID(body.ConversationID))
	if err != nil {
		http.Error(w, "execute: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponseBody{
		ExecutionID: string(exec.ID),
		Status:      string(exec.Status),
		Result:      exec.Result,
		Error:       exec.Error,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/infrabay/opscore/internal/agentloop"
	"github.com/infrabay/opscore/internal/agentloop/api"
	"github.com/infrabay/opscore/internal/agentloop/interrupt"
	"github.com/infrabay/opscore/internal/agentloop/planner"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/llm/model"
	"github.com/infrabay/opscore/internal/sse"
	"github.com/infrabay/opscore/internal/tools"
)

type startRunRequestBody struct {
	SessionID string   `json:"sessionId"`
	Message   string   `json:"message"`
	RunID     string   `json:"runId,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

type startRunResponseBody struct {
	RunID string `json:"runId"`
}

// handleStartRun launches an agent execution loop run (C8) asynchronously
// and returns its run id immediately; clients stream progress separately via
// GET /v1/runs/{runId}/events. This mirrors AgentClient.Start's
// fire-and-subscribe contract rather than AgentClient.Run's blocking one,
// since an HTTP request/response cycle is the wrong place to hold a
// potentially long-running planner loop open.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}

	agentID := ids.AgentID(s.vars(r)["agentId"])
	var body startRunRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	client, err := s.Runtime.Client(agentID)
	if err != nil {
		http.Error(w, "unknown agent: "+err.Error(), http.StatusNotFound)
		return
	}

	runID := body.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	messages := []*model.Message{{
		Role:  model.ConversationRoleUser,
		Parts: []model.Part{model.TextPart{Text: body.Message}},
	}}

	if _, err := client.Start(r.Context(), body.SessionID, messages,
		agentloop.WithRunID(runID), agentloop.WithLabels(body.Labels)); err != nil {
		http.Error(w, "start run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, startRunResponseBody{RunID: runID})
}

// handleRunEvents streams a run's client-facing events (assistant replies,
// tool start/end, awaits) over SSE, bridging Runtime.SubscribeRun's
// stream.Sink contract onto the connection the same way the chat streaming
// pipeline bridges onto one for single-turn chat.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}
	runID := s.vars(r)["runId"]
	if runID == "" {
		http.Error(w, "runId is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w)
	unsubscribe, err := s.Runtime.SubscribeRun(r.Context(), runID, newSSESink(writer))
	if err != nil {
		_ = writer.Send("stream-error", err.Error())
		return
	}
	defer unsubscribe()

	<-r.Context().Done()
}

type pauseRequestBody struct {
	Reason      string `json:"reason,omitempty"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

func (s *Server) handlePauseRun(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}
	runID := s.vars(r)["runId"]
	var body pauseRequestBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := s.Runtime.PauseRun(r.Context(), interrupt.PauseRequest{
		RunID:       runID,
		Reason:      body.Reason,
		RequestedBy: body.RequestedBy,
	}); err != nil {
		http.Error(w, "pause run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resumeRequestBody struct {
	Notes       string `json:"notes,omitempty"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}
	runID := s.vars(r)["runId"]
	var body resumeRequestBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := s.Runtime.ResumeRun(r.Context(), interrupt.ResumeRequest{
		RunID:       runID,
		Notes:       body.Notes,
		RequestedBy: body.RequestedBy,
	}); err != nil {
		http.Error(w, "resume run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clarificationRequestBody struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// handleClarification delivers a human's answer to a planner's
// await-clarification request.
func (s *Server) handleClarification(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}
	runID := s.vars(r)["runId"]
	var body clarificationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Runtime.ProvideClarification(r.Context(), interrupt.ClarificationAnswer{
		RunID:  runID,
		ID:     body.ID,
		Answer: body.Answer,
	}); err != nil {
		http.Error(w, "provide clarification: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toolResultWire is the wire-safe shape of a single external tool result:
// Result travels as raw JSON (decoded to `any` before reaching the planner,
// since interrupt.ToolResultsSet crosses into planner.ToolResult, which is
// not itself wire-safe) and Error travels as a plain string.
type toolResultWire struct {
	ToolCallID string          `json:"toolCallId"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type toolResultsRequestBody struct {
	ID      string           `json:"id"`
	Results []toolResultWire `json:"results"`
}

// handleToolResults delivers externally-produced tool results to a run
// awaiting them (the AwaitExternalTools protocol).
func (s *Server) handleToolResults(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}
	runID := s.vars(r)["runId"]
	var body toolResultsRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]*planner.ToolResult, 0, len(body.Results))
	for _, res := range body.Results {
		tr := &planner.ToolResult{Name: tools.Ident(res.Name), ToolCallID: res.ToolCallID}
		if res.Error != "" {
			tr.Error = errors.New(res.Error)
		} else if len(res.Result) > 0 {
			var decoded any
			if err := json.Unmarshal(res.Result, &decoded); err != nil {
				http.Error(w, "invalid result for tool call "+res.ToolCallID+": "+err.Error(), http.StatusBadRequest)
				return
			}
			tr.Result = decoded
		}
		results = append(results, tr)
	}

	if err := s.Runtime.ProvideToolResults(r.Context(), interrupt.ToolResultsSet{
		RunID:   runID,
		ID:      body.ID,
		Results: results,
	}); err != nil {
		http.Error(w, "provide tool results: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmationRequestBody struct {
	ID          string `json:"id"`
	Approved    bool   `json:"approved"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// handleConfirmation delivers an operator's approve/deny decision for a tool
// call that used design-time Confirmation (distinct from the execution
// store's RequiresApproval protocol used by chatstream and the tool
// dispatcher: this one is the planner-level AwaitConfirmation interrupt).
func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	if s.Runtime == nil {
		http.Error(w, "agent runtime not configured", http.StatusNotImplemented)
		return
	}
	runID := s.vars(r)["runId"]
	var body confirmationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Runtime.ProvideConfirmation(r.Context(), &api.ConfirmationDecision{
		RunID:       runID,
		ID:          body.ID,
		Approved:    body.Approved,
		RequestedBy: body.RequestedBy,
	}); err != nil {
		http.Error(w, "provide confirmation: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

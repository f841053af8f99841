package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/infrabay/opscore/internal/chatstream"
	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/sse"
)

// chatRequestBody is the wire shape of a chat turn: `{message, aiId}`. The
// conversation id is a path parameter, not a body field.
type chatRequestBody struct {
	Message     string `json:"message"`
	AgentID     string `json:"aiId"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// handleChat drives one chat turn over SSE. It ensures the conversation
// record exists (creating one scoped to this request's org/agent on first
// use), then delegates everything else to chatstream.Pipeline.HandleChat:
// establishing the conversation is this transport layer's job, not the
// pipeline's, since chatstream.HandleChat requires the conversation to
// already exist (Conversations.AppendMessage returns convstore.ErrNotFound
// otherwise).
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		http.Error(w, "chat pipeline not configured", http.StatusNotImplemented)
		return
	}

	vars := s.vars(r)
	conversationID := ids.ConversationID(vars["conversationId"])
	if conversationID == "" {
		http.Error(w, "conversationId is required", http.StatusBadRequest)
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	orgID := ids.OrgID(r.Header.Get("X-Org-Id"))
	if err := s.ensureConversation(r.Context(), conversationID, orgID, ids.AgentID(body.AgentID)); err != nil {
		http.Error(w, "create conversation: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w)
	err := s.Chat.HandleChat(r.Context(), writer, chatstream.ChatRequest{
		OrgID:          orgID,
		ConversationID: conversationID,
		AgentID:        ids.AgentID(body.AgentID),
		Message:        body.Message,
		RequestedBy:    body.RequestedBy,
	})
	if err != nil {
		s.logger().Error(r.Context(), "chat stream transport failed", "conversation_id", conversationID, "error", err.Error())
	}
}

// ensureConversation creates the conversation record on first use. A
// conversation already existing is not an error: most turns after the first
// hit this path and should proceed normally.
func (s *Server) ensureConversation(ctx context.Context, id ids.ConversationID, orgID ids.OrgID, agentID ids.AgentID) error {
	_, err := s.Conversations.LoadConversation(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, convstore.ErrNotFound) {
		return err
	}
	return s.Conversations.CreateConversation(ctx, convstore.Conversation{
		ID:      id,
		OrgID:   orgID,
		AgentID: agentID,
	})
}

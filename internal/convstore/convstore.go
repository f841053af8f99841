// Package convstore implements the append-only conversation/message log (C9):
// a Conversation groups Messages exchanged between a user and an agent, and
// is the transcript the chat streaming pipeline (C7) and agent execution
// loop (C8) write to and replay from.
package convstore

import (
	"context"
	"errors"
	"time"

	"github.com/infrabay/opscore/internal/ids"
)

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MessageStatus tracks whether a message is still streaming.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// ToolCallRef is the {id, function:{name, arguments}} shape a message
// carries when the assistant proposed one or more tool calls.
type ToolCallRef struct {
	ID        string
	Name      string
	Arguments []byte
}

// Conversation is the owning container for an append-only message log.
type Conversation struct {
	ID             ids.ConversationID
	OwnerUserID    string
	OrgID          ids.OrgID
	ProjectID      string
	ServerID       string
	AgentID        ids.AgentID
	CreatedAt      time.Time
}

// Message is a single append-only entry in a Conversation's transcript.
// Ordering is strictly by CreatedAt; ties are broken by insertion order
// within a single append call.
type Message struct {
	ID             string
	ConversationID ids.ConversationID
	Role           Role
	Content        string
	ToolCalls      []ToolCallRef
	CreatedAt      time.Time
	Status         MessageStatus
}

// ErrNotFound is returned when a conversation or message id has no record.
var ErrNotFound = errors.New("convstore: not found")

// Store persists conversations and their append-only message logs.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateConversation inserts a new conversation. Returns an error if
	// conv.ID already exists.
	CreateConversation(ctx context.Context, conv Conversation) error
	// LoadConversation retrieves a conversation by id, or ErrNotFound.
	LoadConversation(ctx context.Context, id ids.ConversationID) (Conversation, error)
	// AppendMessage appends msg to its conversation's transcript. Returns
	// ErrNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, msg Message) error
	// UpdateMessage applies mutate to the message identified by
	// (conversationID, messageID) and persists the result, used to
	// accumulate streamed text deltas onto the in-flight assistant message
	// and to flip its status from sending to sent/error. Returns
	// ErrNotFound if the message does not exist.
	UpdateMessage(ctx context.Context, conversationID ids.ConversationID, messageID string, mutate func(*Message)) error
	// ListMessages returns every message in a conversation ordered by
	// CreatedAt.
	ListMessages(ctx context.Context, conversationID ids.ConversationID) ([]Message, error)
}

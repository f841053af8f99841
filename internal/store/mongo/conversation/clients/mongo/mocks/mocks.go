// Package mocks provides a hand-rolled, queue-based test double for the
// conversation Mongo client. Build one with NewClient(t), load it with one
// closure per expected call via AddXxx, and assert via HasMore that every
// queued closure was consumed.
package mocks

import (
	"context"

	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/ids"
)

// TestingT is the subset of *testing.T used by the mock, so callers can pass
// either *testing.T or *testing.B.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Client is a queue-based mock of the conversation Mongo client.
type Client struct {
	t                          TestingT
	pingFns                    []func(ctx context.Context) error
	insertConversationFns      []func(ctx context.Context, conv convstore.Conversation) error
	findConversationFns        []func(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error)
	insertMessageFns           []func(ctx context.Context, msg convstore.Message) error
	replaceMessageFns          []func(ctx context.Context, msg convstore.Message) error
	findMessageFns             []func(ctx context.Context, conversationID ids.ConversationID, messageID string) (convstore.Message, error)
	findMessagesByConvFns      []func(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error)
}

// NewClient constructs an empty Client mock.
func NewClient(t TestingT) *Client {
	return &Client{t: t}
}

// Name implements health.Pinger.
func (c *Client) Name() string { return "conversation-mongo-mock" }

// AddPing queues a response for the next Ping call.
func (c *Client) AddPing(fn func(ctx context.Context) error) {
	c.pingFns = append(c.pingFns, fn)
}

// AddInsertConversation queues a response for the next InsertConversation call.
func (c *Client) AddInsertConversation(fn func(ctx context.Context, conv convstore.Conversation) error) {
	c.insertConversationFns = append(c.insertConversationFns, fn)
}

// AddFindConversation queues a response for the next FindConversation call.
func (c *Client) AddFindConversation(fn func(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error)) {
	c.findConversationFns = append(c.findConversationFns, fn)
}

// AddInsertMessage queues a response for the next InsertMessage call.
func (c *Client) AddInsertMessage(fn func(ctx context.Context, msg convstore.Message) error) {
	c.insertMessageFns = append(c.insertMessageFns, fn)
}

// AddReplaceMessage queues a response for the next ReplaceMessage call.
func (c *Client) AddReplaceMessage(fn func(ctx context.Context, msg convstore.Message) error) {
	c.replaceMessageFns = append(c.replaceMessageFns, fn)
}

// AddFindMessage queues a response for the next FindMessage call.
func (c *Client) AddFindMessage(fn func(ctx context.Context, conversationID ids.ConversationID, messageID string) (convstore.Message, error)) {
	c.findMessageFns = append(c.findMessageFns, fn)
}

// AddFindMessagesByConversation queues a response for the next
// FindMessagesByConversation call.
func (c *Client) AddFindMessagesByConversation(fn func(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error)) {
	c.findMessagesByConvFns = append(c.findMessagesByConvFns, fn)
}

// HasMore reports whether any queued closure remains unconsumed.
func (c *Client) HasMore() bool {
	return len(c.pingFns) > 0 || len(c.insertConversationFns) > 0 || len(c.findConversationFns) > 0 ||
		len(c.insertMessageFns) > 0 || len(c.replaceMessageFns) > 0 || len(c.findMessageFns) > 0 ||
		len(c.findMessagesByConvFns) > 0
}

// Ping implements health.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	c.t.Helper()
	if len(c.pingFns) == 0 {
		c.t.Fatalf("unexpected Ping() call: no more responses queued")
		return nil
	}
	fn := c.pingFns[0]
	c.pingFns = c.pingFns[1:]
	return fn(ctx)
}

// InsertConversation implements the conversation Mongo client.
func (c *Client) InsertConversation(ctx context.Context, conv convstore.Conversation) error {
	c.t.Helper()
	if len(c.insertConversationFns) == 0 {
		c.t.Fatalf("unexpected InsertConversation(%q) call: no more responses queued", conv.ID)
		return nil
	}
	fn := c.insertConversationFns[0]
	c.insertConversationFns = c.insertConversationFns[1:]
	return fn(ctx, conv)
}

// FindConversation implements the conversation Mongo client.
func (c *Client) FindConversation(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error) {
	c.t.Helper()
	if len(c.findConversationFns) == 0 {
		c.t.Fatalf("unexpected FindConversation(%q) call: no more responses queued", id)
		return convstore.Conversation{}, nil
	}
	fn := c.findConversationFns[0]
	c.findConversationFns = c.findConversationFns[1:]
	return fn(ctx, id)
}

// InsertMessage implements the conversation Mongo client.
func (c *Client) InsertMessage(ctx context.Context, msg convstore.Message) error {
	c.t.Helper()
	if len(c.insertMessageFns) == 0 {
		c.t.Fatalf("unexpected InsertMessage(%q) call: no more responses queued", msg.ID)
		return nil
	}
	fn := c.insertMessageFns[0]
	c.insertMessageFns = c.insertMessageFns[1:]
	return fn(ctx, msg)
}

// ReplaceMessage implements the conversation Mongo client.
func (c *Client) ReplaceMessage(ctx context.Context, msg convstore.Message) error {
	c.t.Helper()
	if len(c.replaceMessageFns) == 0 {
		c.t.Fatalf("unexpected ReplaceMessage(%q) call: no more responses queued", msg.ID)
		return nil
	}
	fn := c.replaceMessageFns[0]
	c.replaceMessageFns = c.replaceMessageFns[1:]
	return fn(ctx, msg)
}

// FindMessage implements the conversation Mongo client.
func (c *Client) FindMessage(ctx context.Context, conversationID ids.ConversationID, messageID string) (convstore.Message, error) {
	c.t.Helper()
	if len(c.findMessageFns) == 0 {
		c.t.Fatalf("unexpected FindMessage(%q, %q) call: no more responses queued", conversationID, messageID)
		return convstore.Message{}, nil
	}
	fn := c.findMessageFns[0]
	c.findMessageFns = c.findMessageFns[1:]
	return fn(ctx, conversationID, messageID)
}

// FindMessagesByConversation implements the conversation Mongo client.
func (c *Client) FindMessagesByConversation(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error) {
	c.t.Helper()
	if len(c.findMessagesByConvFns) == 0 {
		c.t.Fatalf("unexpected FindMessagesByConversation(%q) call: no more responses queued", conversationID)
		return nil, nil
	}
	fn := c.findMessagesByConvFns[0]
	c.findMessagesByConvFns = c.findMessagesByConvFns[1:]
	return fn(ctx, conversationID)
}

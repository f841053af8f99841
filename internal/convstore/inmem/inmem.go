// Package inmem provides an in-memory implementation of convstore.Store for
// tests and the single-node deployment.
package inmem

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/ids"
)

// Store implements convstore.Store in memory. All operations are
// thread-safe via sync.RWMutex.
type Store struct {
	mu            sync.RWMutex
	conversations map[ids.ConversationID]convstore.Conversation
	messages      map[ids.ConversationID][]convstore.Message
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		conversations: make(map[ids.ConversationID]convstore.Conversation),
		messages:      make(map[ids.ConversationID][]convstore.Message),
	}
}

// CreateConversation implements convstore.Store.
func (s *Store) CreateConversation(_ context.Context, conv convstore.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conv.ID]; exists {
		return errors.New("convstore: conversation already exists")
	}
	s.conversations[conv.ID] = conv
	return nil
}

// LoadConversation implements convstore.Store.
func (s *Store) LoadConversation(_ context.Context, id ids.ConversationID) (convstore.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return convstore.Conversation{}, convstore.ErrNotFound
	}
	return conv, nil
}

// AppendMessage implements convstore.Store.
func (s *Store) AppendMessage(_ context.Context, msg convstore.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return convstore.ErrNotFound
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

// UpdateMessage implements convstore.Store.
func (s *Store) UpdateMessage(_ context.Context, conversationID ids.ConversationID, messageID string, mutate func(*convstore.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			mutate(&msgs[i])
			return nil
		}
	}
	return convstore.ErrNotFound
}

// ListMessages implements convstore.Store.
func (s *Store) ListMessages(_ context.Context, conversationID ids.ConversationID) ([]convstore.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]convstore.Message(nil), s.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

// Reset clears all stored conversations and messages. Useful for test
// isolation; not part of convstore.Store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[ids.ConversationID]convstore.Conversation)
	s.messages = make(map[ids.ConversationID][]convstore.Message)
}

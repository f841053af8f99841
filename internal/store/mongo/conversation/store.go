package mongo

import (
	"context"
	"errors"

	"github.com/infrabay/opscore/internal/convstore"
	clientsmongo "github.com/infrabay/opscore/internal/store/mongo/conversation/clients/mongo"
	"github.com/infrabay/opscore/internal/ids"
)

// Options configures the Mongo-backed conversation store.
type Options struct {
	Client clientsmongo.Client
}

// Store implements convstore.Store by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo instantiates the Store by constructing the underlying client.
func NewStoreFromMongo(opts clientsmongo.Options) (*Store, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

// CreateConversation implements convstore.Store.
func (s *Store) CreateConversation(ctx context.Context, conv convstore.Conversation) error {
	return s.client.InsertConversation(ctx, conv)
}

// LoadConversation implements convstore.Store.
func (s *Store) LoadConversation(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error) {
	return s.client.FindConversation(ctx, id)
}

// AppendMessage implements convstore.Store.
func (s *Store) AppendMessage(ctx context.Context, msg convstore.Message) error {
	if _, err := s.client.FindConversation(ctx, msg.ConversationID); err != nil {
		return err
	}
	return s.client.InsertMessage(ctx, msg)
}

// UpdateMessage implements convstore.Store.
func (s *Store) UpdateMessage(ctx context.Context, conversationID ids.ConversationID, messageID string, mutate func(*convstore.Message)) error {
	msg, err := s.client.FindMessage(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	mutate(&msg)
	return s.client.ReplaceMessage(ctx, msg)
}

// ListMessages implements convstore.Store.
func (s *Store) ListMessages(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error) {
	return s.client.FindMessagesByConversation(ctx, conversationID)
}

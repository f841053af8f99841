package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/ids"
	mockmongo "github.com/infrabay/opscore/internal/store/mongo/conversation/clients/mongo/mocks"
)

func TestNewStoreRequiresClient(t *testing.T) {
	_, err := NewStore(Options{})
	require.EqualError(t, err, "client is required")
}

func TestCreateConversationDelegatesToClient(t *testing.T) {
	mockClient := mockmongo.NewClient(t)
	conv := convstore.Conversation{ID: "conv-1", OwnerUserID: "u1"}
	mockClient.AddInsertConversation(func(ctx context.Context, c convstore.Conversation) error {
		require.Equal(t, conv, c)
		return nil
	})
	store, err := NewStore(Options{Client: mockClient})
	require.NoError(t, err)

	require.NoError(t, store.CreateConversation(context.Background(), conv))
	require.False(t, mockClient.HasMore())
}

func TestAppendMessageChecksConversationExistsFirst(t *testing.T) {
	mockClient := mockmongo.NewClient(t)
	msg := convstore.Message{ID: "m1", ConversationID: "conv-1"}
	mockClient.AddFindConversation(func(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error) {
		require.Equal(t, ids.ConversationID("conv-1"), id)
		return convstore.Conversation{ID: "conv-1"}, nil
	})
	mockClient.AddInsertMessage(func(ctx context.Context, m convstore.Message) error {
		require.Equal(t, msg, m)
		return nil
	})
	store, err := NewStore(Options{Client: mockClient})
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(context.Background(), msg))
	require.False(t, mockClient.HasMore())
}

func TestAppendMessagePropagatesMissingConversation(t *testing.T) {
	mockClient := mockmongo.NewClient(t)
	mockClient.AddFindConversation(func(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error) {
		return convstore.Conversation{}, convstore.ErrNotFound
	})
	store, err := NewStore(Options{Client: mockClient})
	require.NoError(t, err)

	err = store.AppendMessage(context.Background(), convstore.Message{ID: "m1", ConversationID: "missing"})
	require.ErrorIs(t, err, convstore.ErrNotFound)
	require.False(t, mockClient.HasMore())
}

func TestUpdateMessageLoadsMutatesAndReplaces(t *testing.T) {
	mockClient := mockmongo.NewClient(t)
	mockClient.AddFindMessage(func(ctx context.Context, conversationID ids.ConversationID, messageID string) (convstore.Message, error) {
		return convstore.Message{ID: "m1", ConversationID: "conv-1", Status: convstore.StatusSending}, nil
	})
	mockClient.AddReplaceMessage(func(ctx context.Context, m convstore.Message) error {
		require.Equal(t, convstore.StatusSent, m.Status)
		require.Equal(t, "hello", m.Content)
		return nil
	})
	store, err := NewStore(Options{Client: mockClient})
	require.NoError(t, err)

	err = store.UpdateMessage(context.Background(), "conv-1", "m1", func(m *convstore.Message) {
		m.Content = "hello"
		m.Status = convstore.StatusSent
	})
	require.NoError(t, err)
	require.False(t, mockClient.HasMore())
}

func TestListMessagesDelegatesToClient(t *testing.T) {
	mockClient := mockmongo.NewClient(t)
	expected := []convstore.Message{{ID: "m1", ConversationID: "conv-1"}}
	mockClient.AddFindMessagesByConversation(func(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error) {
		require.Equal(t, ids.ConversationID("conv-1"), conversationID)
		return expected, nil
	})
	store, err := NewStore(Options{Client: mockClient})
	require.NoError(t, err)

	actual, err := store.ListMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, expected, actual)
	require.False(t, mockClient.HasMore())
}

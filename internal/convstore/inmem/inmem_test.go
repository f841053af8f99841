package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infrabay/opscore/internal/convstore"
)

func TestCreateAndLoadConversation(t *testing.T) {
	store := New()
	conv := convstore.Conversation{ID: "conv-1", OwnerUserID: "u1", OrgID: "org-1"}
	require.NoError(t, store.CreateConversation(context.Background(), conv))

	loaded, err := store.LoadConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, conv, loaded)
}

func TestLoadConversationMissingReturnsErrNotFound(t *testing.T) {
	store := New()
	_, err := store.LoadConversation(context.Background(), "missing")
	require.ErrorIs(t, err, convstore.ErrNotFound)
}

func TestAppendMessageRequiresExistingConversation(t *testing.T) {
	store := New()
	err := store.AppendMessage(context.Background(), convstore.Message{ID: "m1", ConversationID: "missing"})
	require.ErrorIs(t, err, convstore.ErrNotFound)
}

func TestAppendAndListMessagesOrderedByCreatedAt(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, convstore.Conversation{ID: "conv-1"}))

	now := time.Now()
	second := convstore.Message{ID: "m2", ConversationID: "conv-1", CreatedAt: now.Add(time.Second)}
	first := convstore.Message{ID: "m1", ConversationID: "conv-1", CreatedAt: now}
	require.NoError(t, store.AppendMessage(ctx, second))
	require.NoError(t, store.AppendMessage(ctx, first))

	msgs, err := store.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, "m2", msgs[1].ID)
}

func TestUpdateMessageMutatesAccumulatedContent(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, convstore.Conversation{ID: "conv-1"}))
	require.NoError(t, store.AppendMessage(ctx, convstore.Message{
		ID: "m1", ConversationID: "conv-1", Status: convstore.StatusSending,
	}))

	err := store.UpdateMessage(ctx, "conv-1", "m1", func(m *convstore.Message) {
		m.Content += "hello"
		m.Status = convstore.StatusSent
	})
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, convstore.StatusSent, msgs[0].Status)
}

func TestUpdateMessageMissingReturnsErrNotFound(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, convstore.Conversation{ID: "conv-1"}))

	err := store.UpdateMessage(ctx, "conv-1", "missing", func(m *convstore.Message) {})
	require.ErrorIs(t, err, convstore.ErrNotFound)
}

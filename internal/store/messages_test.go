// ABOUTME: Tests for message persistence, read-once marking, and unread counts
// ABOUTME: Covers conversation ordering and the bulk read sweep

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMessage(id, sender, receiver, content string, createdAt time.Time) *Message {
	return &Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestStore_CreateAndGetMessage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "hello there", now)))

	retrieved, err := store.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.SenderID)
	assert.Equal(t, "user-2", retrieved.ReceiverID)
	assert.Equal(t, "hello there", retrieved.Content)
	assert.False(t, retrieved.IsRead)
	assert.Nil(t, retrieved.ReadAt)
	assert.Equal(t, now, retrieved.CreatedAt)
}

func TestStore_GetMessage_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetMessage(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListConversation_OrderedBothDirections(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-2", "user-2", "user-1", "reply", base.Add(time.Second))))
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "first", base)))
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-3", "user-1", "user-2", "followup", base.Add(2*time.Second))))
	// Unrelated conversation must not leak in
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-other", "user-1", "user-3", "elsewhere", base)))

	messages, err := store.ListConversation(ctx, "user-1", "user-2")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, "msg-2", messages[1].ID)
	assert.Equal(t, "msg-3", messages[2].ID)

	// Same result regardless of argument order
	reversed, err := store.ListConversation(ctx, "user-2", "user-1")
	require.NoError(t, err)
	require.Len(t, reversed, 3)
	assert.Equal(t, "msg-1", reversed[0].ID)
}

func TestStore_ListConversation_SubSecondOrdering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// A burst within one second, where the later message has the
	// lexicographically smaller id. Creation order must still win.
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("z-first", "user-1", "user-2", "first", base.Add(100*time.Millisecond))))
	require.NoError(t, store.CreateMessage(ctx, makeMessage("a-second", "user-1", "user-2", "second", base.Add(900*time.Millisecond))))

	messages, err := store.ListConversation(ctx, "user-1", "user-2")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
}

func TestStore_MarkMessageRead(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "hello", now)))

	readAt := now.Add(time.Minute)
	require.NoError(t, store.MarkMessageRead(ctx, "msg-1", readAt))

	retrieved, err := store.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, retrieved.IsRead)
	require.NotNil(t, retrieved.ReadAt)
	assert.Equal(t, readAt, *retrieved.ReadAt)
}

func TestStore_MarkMessageRead_OnlyOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "hello", now)))

	firstRead := now.Add(time.Minute)
	require.NoError(t, store.MarkMessageRead(ctx, "msg-1", firstRead))

	// Second call reports ErrAlreadyRead and must not move read_at
	err := store.MarkMessageRead(ctx, "msg-1", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyRead)

	retrieved, err := store.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, retrieved.ReadAt)
	assert.Equal(t, firstRead, *retrieved.ReadAt)
}

func TestStore_MarkMessageRead_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.MarkMessageRead(context.Background(), "nonexistent", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MarkConversationRead(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("msg-%d", i)
		require.NoError(t, store.CreateMessage(ctx, makeMessage(id, "user-1", "user-2", "hi", base.Add(time.Duration(i)*time.Second))))
	}
	// Opposite direction stays unread
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-back", "user-2", "user-1", "hi back", base)))
	// Already-read message is not recounted
	require.NoError(t, store.MarkMessageRead(ctx, "msg-0", base.Add(time.Minute)))

	count, err := store.MarkConversationRead(ctx, "user-1", "user-2", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Sweep is idempotent
	count, err = store.MarkConversationRead(ctx, "user-1", "user-2", base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	unread, err := store.CountUnread(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestStore_UpdateMessageContent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "original", now)))

	editedAt := now.Add(time.Minute)
	require.NoError(t, store.UpdateMessageContent(ctx, "msg-1", "edited", editedAt))

	retrieved, err := store.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "edited", retrieved.Content)
	assert.Equal(t, editedAt, retrieved.UpdatedAt)
	assert.Equal(t, now, retrieved.CreatedAt)
}

func TestStore_UpdateMessageContent_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateMessageContent(context.Background(), "nonexistent", "edited", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteMessage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "hello", now)))
	require.NoError(t, store.DeleteMessage(ctx, "msg-1"))

	_, err := store.GetMessage(ctx, "msg-1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.DeleteMessage(ctx, "msg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CountUnreadFrom(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-1", "user-1", "user-2", "a", base)))
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-2", "user-1", "user-2", "b", base.Add(time.Second))))
	require.NoError(t, store.CreateMessage(ctx, makeMessage("msg-3", "user-3", "user-2", "c", base)))

	fromOne, err := store.CountUnreadFrom(ctx, "user-2", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fromOne)

	fromThree, err := store.CountUnreadFrom(ctx, "user-2", "user-3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fromThree)

	total, err := store.CountUnread(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

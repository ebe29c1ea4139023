// ABOUTME: Direct-message protocol on top of the conversation store
// ABOUTME: Send, read-on-open, read receipts, edits, and hard deletes

package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/amity-gateway/internal/apperr"
	"github.com/2389/amity-gateway/internal/store"
)

// Service enforces messaging invariants. The live channel and the fallback
// API both dispatch into this one implementation.
type Service struct {
	conversations store.ConversationStore
	users         store.UserStore
	logger        *slog.Logger
}

// New creates a messaging service.
func New(conversations store.ConversationStore, users store.UserStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conversations: conversations,
		users:         users,
		logger:        logger.With("component", "messaging"),
	}
}

// Send persists a message from sender to receiver and touches the sender's
// last_active. Content is trimmed; empty content is rejected.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content string) (*store.Message, error) {
	if senderID == receiverID {
		return nil, apperr.New(apperr.CodeSelfReference, "cannot send a message to yourself")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.CodeEmptyContent, "message content is empty")
	}

	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return nil, apperr.Storage(err)
	}

	now := time.Now().UTC()
	m := &store.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.conversations.CreateMessage(ctx, m); err != nil {
		return nil, apperr.Storage(err)
	}

	if err := s.users.TouchLastActive(ctx, senderID, now); err != nil {
		s.logger.Warn("failed to touch last_active", "user_id", senderID, "error", err)
	}

	s.logger.Info("message sent", "message_id", m.ID, "sender", senderID, "receiver", receiverID)
	return m, nil
}

// Conversation returns all messages between the pair in ascending creation
// order, then marks every message addressed to the viewer as read. Opening
// a conversation acknowledges everything pending from that counterpart.
// The returned count is how many messages the open marked read.
func (s *Service) Conversation(ctx context.Context, userA, userB, viewerID string) ([]*store.Message, int64, error) {
	if viewerID != userA && viewerID != userB {
		return nil, 0, apperr.New(apperr.CodeForbidden, "not a participant of this conversation")
	}

	messages, err := s.conversations.ListConversation(ctx, userA, userB)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}

	counterpart := userA
	if counterpart == viewerID {
		counterpart = userB
	}

	now := time.Now().UTC()
	marked, err := s.conversations.MarkConversationRead(ctx, counterpart, viewerID, now)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}

	// Reflect the sweep in the returned slice without a second query
	if marked > 0 {
		for _, m := range messages {
			if m.ReceiverID == viewerID && !m.IsRead {
				m.IsRead = true
				readAt := now
				m.ReadAt = &readAt
				m.UpdatedAt = now
			}
		}
	}

	return messages, marked, nil
}

// MarkRead marks a single message as read. Only the receiver may mark;
// repeating the call is a no-op that returns the unchanged message. The
// second return value reports whether this call performed the unread-to-read
// transition, so callers emit at most one read receipt per message.
func (s *Service) MarkRead(ctx context.Context, messageID, actingUserID string) (*store.Message, bool, error) {
	m, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}

	if m.ReceiverID != actingUserID {
		return nil, false, apperr.New(apperr.CodeForbidden, "only the receiver may mark a message read")
	}

	now := time.Now().UTC()
	transitioned := false
	err = s.conversations.MarkMessageRead(ctx, messageID, now)
	switch {
	case err == nil:
		transitioned = true
		m.IsRead = true
		readAt := now
		m.ReadAt = &readAt
		m.UpdatedAt = now
	case errors.Is(err, store.ErrAlreadyRead):
		// Idempotent: the original read_at stands
	case errors.Is(err, store.ErrNotFound):
		return nil, false, apperr.New(apperr.CodeNotFound, "message not found")
	default:
		return nil, false, apperr.Storage(err)
	}

	return m, transitioned, nil
}

// MarkConversationRead marks every unread message from senderID to the
// acting user as read and returns how many changed.
func (s *Service) MarkConversationRead(ctx context.Context, senderID, actingUserID string) (int64, error) {
	marked, err := s.conversations.MarkConversationRead(ctx, senderID, actingUserID, time.Now().UTC())
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return marked, nil
}

// Update replaces a message's content. Only the sender may edit.
func (s *Service) Update(ctx context.Context, messageID, actingUserID, newContent string) (*store.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, apperr.New(apperr.CodeEmptyContent, "message content is empty")
	}

	m, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if m.SenderID != actingUserID {
		return nil, apperr.New(apperr.CodeForbidden, "only the sender may edit a message")
	}

	now := time.Now().UTC()
	if err := s.conversations.UpdateMessageContent(ctx, messageID, newContent, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "message not found")
		}
		return nil, apperr.Storage(err)
	}

	m.Content = newContent
	m.UpdatedAt = now
	return m, nil
}

// Delete hard-deletes a message. Either participant may delete.
func (s *Service) Delete(ctx context.Context, messageID, actingUserID string) (*store.Message, error) {
	m, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if m.SenderID != actingUserID && m.ReceiverID != actingUserID {
		return nil, apperr.New(apperr.CodeForbidden, "only participants may delete a message")
	}

	if err := s.conversations.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "message not found")
		}
		return nil, apperr.Storage(err)
	}

	s.logger.Info("message deleted", "message_id", messageID, "actor", actingUserID)
	return m, nil
}

// UnreadCount returns the number of unread messages addressed to the user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.conversations.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return count, nil
}

// UnreadCountFrom returns the unread count from one specific sender.
func (s *Service) UnreadCountFrom(ctx context.Context, userID, senderID string) (int64, error) {
	count, err := s.conversations.CountUnreadFrom(ctx, userID, senderID)
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return count, nil
}

func (s *Service) getMessage(ctx context.Context, messageID string) (*store.Message, error) {
	m, err := s.conversations.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "message not found")
		}
		return nil, apperr.Storage(err)
	}
	return m, nil
}

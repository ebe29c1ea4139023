// ABOUTME: The one shared mutation path behind both transports
// ABOUTME: Channel dispatch and REST handlers call these, never the services directly

package gateway

import (
	"context"

	"github.com/2389/amity-gateway/internal/apperr"
	"github.com/2389/amity-gateway/internal/friendship"
	"github.com/2389/amity-gateway/internal/messaging"
)

// Request payloads. The acting-user field in each payload must match the
// authenticated identity; Ops enforces that so neither transport can skip it.

type sendRequestPayload struct {
	RequesterID string `json:"requester_id"`
	AddresseeID string `json:"addressee_id"`
}

type friendshipActionPayload struct {
	FriendshipID string `json:"friendship_id"`
	UserID       string `json:"user_id"`
}

type sendMessagePayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type messageActionPayload struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
}

type updateMessagePayload struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
}

type conversationReadPayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// Ops executes protocol operations: actor check, service call, counterpart
// fan-out, ack payload. Every mutation reachable over the live channel or
// the fallback API goes through exactly one method here.
type Ops struct {
	friendships *friendship.Service
	messages    *messaging.Service
	notifier    *Notifier
}

// NewOps wires the services and the notifier into one dispatch core.
func NewOps(friendships *friendship.Service, messages *messaging.Service, notifier *Notifier) *Ops {
	return &Ops{
		friendships: friendships,
		messages:    messages,
		notifier:    notifier,
	}
}

func errActorMismatch() error {
	return apperr.New(apperr.CodeForbidden, "acting user does not match authenticated identity")
}

// SendFriendRequest creates a pending request and notifies the addressee.
func (o *Ops) SendFriendRequest(ctx context.Context, actorID string, p sendRequestPayload) (any, error) {
	if p.RequesterID != actorID {
		return nil, errActorMismatch()
	}

	f, err := o.friendships.SendRequest(ctx, p.RequesterID, p.AddresseeID)
	if err != nil {
		return nil, err
	}

	o.notifier.RequestReceived(f)
	return map[string]any{"friendship": friendshipView(f)}, nil
}

// AcceptFriendRequest resolves a pending request and notifies the requester.
func (o *Ops) AcceptFriendRequest(ctx context.Context, actorID string, p friendshipActionPayload) (any, error) {
	if p.UserID != actorID {
		return nil, errActorMismatch()
	}

	f, err := o.friendships.Accept(ctx, p.FriendshipID, actorID)
	if err != nil {
		return nil, err
	}

	o.notifier.RequestAccepted(f)
	return map[string]any{"friendship": friendshipView(f)}, nil
}

// RejectFriendRequest resolves a pending request and notifies the requester.
func (o *Ops) RejectFriendRequest(ctx context.Context, actorID string, p friendshipActionPayload) (any, error) {
	if p.UserID != actorID {
		return nil, errActorMismatch()
	}

	f, err := o.friendships.Reject(ctx, p.FriendshipID, actorID)
	if err != nil {
		return nil, err
	}

	o.notifier.RequestRejected(f)
	return map[string]any{"friendship": friendshipView(f)}, nil
}

// CancelFriendRequest withdraws a pending request and notifies the addressee.
func (o *Ops) CancelFriendRequest(ctx context.Context, actorID string, p friendshipActionPayload) (any, error) {
	if p.UserID != actorID {
		return nil, errActorMismatch()
	}

	f, err := o.friendships.Cancel(ctx, p.FriendshipID, actorID)
	if err != nil {
		return nil, err
	}

	o.notifier.RequestCancelled(f)
	return map[string]any{}, nil
}

// SendMessage persists a message and notifies the receiver.
func (o *Ops) SendMessage(ctx context.Context, actorID string, p sendMessagePayload) (any, error) {
	if p.SenderID != actorID {
		return nil, errActorMismatch()
	}

	m, err := o.messages.Send(ctx, p.SenderID, p.ReceiverID, p.Content)
	if err != nil {
		return nil, err
	}

	o.notifier.MessageNew(m)
	return map[string]any{"message": messageView(m)}, nil
}

// DeleteMessage hard-deletes a message and notifies the other participant.
func (o *Ops) DeleteMessage(ctx context.Context, actorID string, p messageActionPayload) (any, error) {
	if p.UserID != actorID {
		return nil, errActorMismatch()
	}

	m, err := o.messages.Delete(ctx, p.MessageID, actorID)
	if err != nil {
		return nil, err
	}

	o.notifier.MessageDeleted(m, actorID)
	return map[string]any{"message": messageView(m)}, nil
}

// MarkMessageRead marks a single message read. The receipt is pushed only
// when this call performed the unread-to-read transition; a repeated or
// race-losing call acks successfully without re-notifying the sender.
func (o *Ops) MarkMessageRead(ctx context.Context, actorID string, p messageActionPayload) (any, error) {
	if p.UserID != actorID {
		return nil, errActorMismatch()
	}

	m, transitioned, err := o.messages.MarkRead(ctx, p.MessageID, actorID)
	if err != nil {
		return nil, err
	}

	if transitioned {
		o.notifier.ReadReceipt(m)
	}
	return map[string]any{"message": messageView(m)}, nil
}

// MarkConversationRead sweeps a conversation and notifies the sender.
func (o *Ops) MarkConversationRead(ctx context.Context, actorID string, p conversationReadPayload) (any, error) {
	if p.ReceiverID != actorID {
		return nil, errActorMismatch()
	}

	marked, err := o.messages.MarkConversationRead(ctx, p.SenderID, actorID)
	if err != nil {
		return nil, err
	}

	if marked > 0 {
		o.notifier.ConversationRead(p.SenderID, actorID)
	}
	return map[string]any{}, nil
}

// UpdateMessage edits a message's content. The counterpart sees the edit on
// its next fetch; no push event is defined for edits.
func (o *Ops) UpdateMessage(ctx context.Context, actorID string, p updateMessagePayload) (any, error) {
	if p.UserID != actorID {
		return nil, errActorMismatch()
	}

	m, err := o.messages.Update(ctx, p.MessageID, actorID, p.Content)
	if err != nil {
		return nil, err
	}

	return map[string]any{"message": messageView(m)}, nil
}

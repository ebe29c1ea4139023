// ABOUTME: Live-channel event names, wire payloads, and counterpart fan-out
// ABOUTME: The Notifier pushes typed events to whichever counterpart is online

package gateway

import (
	"log/slog"
	"time"

	"github.com/2389/amity-gateway/internal/registry"
	"github.com/2389/amity-gateway/internal/store"
)

// Request events a client may send on the live channel.
const (
	EventAuth                        = "auth"
	EventFriendshipSendRequest       = "friendship.sendRequest"
	EventFriendshipAccept            = "friendship.accept"
	EventFriendshipReject            = "friendship.reject"
	EventFriendshipCancel            = "friendship.cancel"
	EventMessageSend                 = "message.send"
	EventMessageDelete               = "message.delete"
	EventMessageMarkRead             = "message.markRead"
	EventMessageMarkConversationRead = "message.markConversationRead"
)

// Events pushed to the counterpart of a successful mutation.
const (
	EventFriendshipRequestReceived  = "friendship.requestReceived"
	EventFriendshipRequestAccepted  = "friendship.requestAccepted"
	EventFriendshipRequestRejected  = "friendship.requestRejected"
	EventFriendshipRequestCancelled = "friendship.requestCancelled"
	EventMessageNew                 = "message.new"
	EventMessageDeleted             = "message.deleted"
	EventMessageReadReceipt         = "message.readReceipt"
	EventMessageConversationRead    = "message.conversationRead"
)

// FriendshipView is the wire shape of a friendship row.
type FriendshipView struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	AddresseeID string `json:"addressee_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// MessageView is the wire shape of a message row.
type MessageView struct {
	ID         string  `json:"id"`
	SenderID   string  `json:"sender_id"`
	ReceiverID string  `json:"receiver_id"`
	Content    string  `json:"content"`
	IsRead     bool    `json:"is_read"`
	ReadAt     *string `json:"read_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// UserView is the wire shape of a roster entry.
type UserView struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	LastActive string `json:"last_active"`
}

func friendshipView(f *store.Friendship) FriendshipView {
	return FriendshipView{
		ID:          f.ID,
		RequesterID: f.RequesterID,
		AddresseeID: f.AddresseeID,
		Status:      string(f.Status),
		CreatedAt:   f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func messageView(m *store.Message) MessageView {
	view := MessageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if m.ReadAt != nil {
		readAt := m.ReadAt.UTC().Format(time.RFC3339)
		view.ReadAt = &readAt
	}
	return view
}

func userView(u *store.User) UserView {
	return UserView{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		LastActive: u.LastActive.UTC().Format(time.RFC3339),
	}
}

// Notifier fans out mutation events to the affected counterpart. Offline
// counterparts are skipped silently; they discover the change on their next
// fallback fetch. Both transports share this one fan-out path.
type Notifier struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewNotifier creates a notifier backed by the connection registry.
func NewNotifier(reg *registry.Registry, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		registry: reg,
		logger:   logger.With("component", "notifier"),
	}
}

// push delivers an event to the user's live session, if any.
func (n *Notifier) push(userID, event string, payload any) {
	session, ok := n.registry.Lookup(userID)
	if !ok {
		return
	}
	if !session.Deliver(event, payload) {
		n.logger.Warn("event dropped, outbound queue full", "user_id", userID, "event", event)
	}
}

// RequestReceived notifies the addressee of a new friend request.
func (n *Notifier) RequestReceived(f *store.Friendship) {
	n.push(f.AddresseeID, EventFriendshipRequestReceived, map[string]any{
		"friendship":   friendshipView(f),
		"requester_id": f.RequesterID,
	})
}

// RequestAccepted notifies the requester their request was accepted.
func (n *Notifier) RequestAccepted(f *store.Friendship) {
	n.push(f.RequesterID, EventFriendshipRequestAccepted, map[string]any{
		"friendship":  friendshipView(f),
		"accepter_id": f.AddresseeID,
	})
}

// RequestRejected notifies the requester their request was rejected.
func (n *Notifier) RequestRejected(f *store.Friendship) {
	n.push(f.RequesterID, EventFriendshipRequestRejected, map[string]any{
		"friendship_id": f.ID,
		"rejecter_id":   f.AddresseeID,
	})
}

// RequestCancelled notifies the addressee the request was withdrawn.
func (n *Notifier) RequestCancelled(f *store.Friendship) {
	n.push(f.AddresseeID, EventFriendshipRequestCancelled, map[string]any{
		"friendship_id": f.ID,
		"canceller_id":  f.RequesterID,
	})
}

// MessageNew notifies the receiver of a new message.
func (n *Notifier) MessageNew(m *store.Message) {
	n.push(m.ReceiverID, EventMessageNew, map[string]any{
		"message": messageView(m),
	})
}

// MessageDeleted notifies the other participant of a deletion.
func (n *Notifier) MessageDeleted(m *store.Message, actorID string) {
	counterpart := m.SenderID
	if counterpart == actorID {
		counterpart = m.ReceiverID
	}
	n.push(counterpart, EventMessageDeleted, map[string]any{
		"message_id": m.ID,
	})
}

// ReadReceipt notifies the sender their message was read.
func (n *Notifier) ReadReceipt(m *store.Message) {
	var readAt string
	if m.ReadAt != nil {
		readAt = m.ReadAt.UTC().Format(time.RFC3339)
	}
	n.push(m.SenderID, EventMessageReadReceipt, map[string]any{
		"message_id": m.ID,
		"read_at":    readAt,
	})
}

// ConversationRead notifies the sender their whole conversation was read.
func (n *Notifier) ConversationRead(senderID, receiverID string) {
	n.push(senderID, EventMessageConversationRead, map[string]any{
		"receiver_id": receiverID,
	})
}

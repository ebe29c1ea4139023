// ABOUTME: Store interfaces and data types for amity-gateway persistence
// ABOUTME: Defines User, Friendship, Message structs and the storage contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrStaleStatus is returned when a conditional status update finds the row
// in a different state than expected (the caller lost a race or is retrying
// a finished transition).
var ErrStaleStatus = errors.New("stale status")

// ErrDuplicatePair is returned when creating a friendship for a user pair
// that already has an active row.
var ErrDuplicatePair = errors.New("friendship already exists for pair")

// ErrAlreadyRead is returned by MarkMessageRead when the message was read
// before this call. Callers treat it as a no-op signal, not a failure.
var ErrAlreadyRead = errors.New("message already read")

// FriendshipStatus is the stored lifecycle state of a friendship row.
type FriendshipStatus string

const (
	FriendshipPending   FriendshipStatus = "pending"
	FriendshipAccepted  FriendshipStatus = "accepted"
	FriendshipRejected  FriendshipStatus = "rejected"
	FriendshipCancelled FriendshipStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s FriendshipStatus) Terminal() bool {
	return s == FriendshipAccepted || s == FriendshipRejected || s == FriendshipCancelled
}

// User is a roster entry. User lifecycle is owned outside this process;
// the gateway only reads rows and touches last_active.
type User struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	LastActive time.Time
}

// Friendship is the canonical stored relationship row. The viewer-relative
// state (request sent vs. received) is derived, never stored.
type Friendship struct {
	ID          string
	RequesterID string
	AddresseeID string
	Status      FriendshipStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Involves reports whether userID is a participant of the friendship.
func (f *Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// Message is a direct text message between two users.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserStore provides read access to the user roster plus the single
// mutation this gateway owns: the activity timestamp.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

// RelationshipStore persists friendship rows. Status transitions go through
// UpdateFriendshipStatus, which performs an atomic compare-and-set so that
// concurrent accept/cancel calls cannot both succeed.
type RelationshipStore interface {
	CreateFriendship(ctx context.Context, f *Friendship) error
	GetFriendship(ctx context.Context, id string) (*Friendship, error)
	GetFriendshipByPair(ctx context.Context, userA, userB string) (*Friendship, error)
	UpdateFriendshipStatus(ctx context.Context, id string, from, to FriendshipStatus, at time.Time) error
	DeleteFriendship(ctx context.Context, id string) error
	ListFriendshipsFor(ctx context.Context, userID string) ([]*Friendship, error)
}

// ConversationStore persists messages and their read/delete state. Read
// marking is an atomic false-to-true transition; ErrAlreadyRead signals a
// repeat call without mutating read_at.
type ConversationStore interface {
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]*Message, error)
	MarkMessageRead(ctx context.Context, id string, at time.Time) error
	MarkConversationRead(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error)
	UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error
	DeleteMessage(ctx context.Context, id string) error
	CountUnread(ctx context.Context, receiverID string) (int64, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID string) (int64, error)
}

// Store aggregates all storage contracts. SQLiteStore implements every
// interface in one struct; components depend on the narrow interfaces.
type Store interface {
	UserStore
	RelationshipStore
	ConversationStore

	// Ping verifies the database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

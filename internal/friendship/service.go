// ABOUTME: Friendship lifecycle state machine on top of the relationship store
// ABOUTME: All transitions are guarded here - transports never touch rows directly

package friendship

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/2389/amity-gateway/internal/apperr"
	"github.com/2389/amity-gateway/internal/store"
)

// ViewerStatus is the viewer-relative friendship state. It is derived from
// the stored row plus the viewer's identity and never persisted.
type ViewerStatus string

const (
	StatusNone            ViewerStatus = "NONE"
	StatusPendingSent     ViewerStatus = "PENDING_SENT"
	StatusPendingReceived ViewerStatus = "PENDING_RECEIVED"
	StatusAccepted        ViewerStatus = "ACCEPTED"
	StatusRejected        ViewerStatus = "REJECTED"
	StatusCancelled       ViewerStatus = "CANCELLED"
)

// DeriveViewerStatus computes the viewer-relative state for a stored row.
// A nil row means no relationship exists.
func DeriveViewerStatus(f *store.Friendship, viewerID string) ViewerStatus {
	if f == nil {
		return StatusNone
	}
	switch f.Status {
	case store.FriendshipPending:
		if f.RequesterID == viewerID {
			return StatusPendingSent
		}
		return StatusPendingReceived
	case store.FriendshipAccepted:
		return StatusAccepted
	case store.FriendshipRejected:
		return StatusRejected
	case store.FriendshipCancelled:
		return StatusCancelled
	}
	return StatusNone
}

// Contact is a roster entry annotated with the viewer-relative state.
type Contact struct {
	User         *store.User
	Status       ViewerStatus
	FriendshipID string
}

// Service enforces the friendship lifecycle. Both the live channel and the
// fallback API call these methods, so the two transports cannot drift.
type Service struct {
	relationships store.RelationshipStore
	users         store.UserStore
	logger        *slog.Logger
}

// New creates a friendship service.
func New(relationships store.RelationshipStore, users store.UserStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		relationships: relationships,
		users:         users,
		logger:        logger.With("component", "friendship"),
	}
}

// SendRequest creates a pending friendship from requester to addressee.
// A terminal (rejected/cancelled) row for the pair is deleted and replaced
// with a fresh pending row; history of past outcomes is not retained.
func (s *Service) SendRequest(ctx context.Context, requesterID, addresseeID string) (*store.Friendship, error) {
	if requesterID == addresseeID {
		return nil, apperr.New(apperr.CodeSelfReference, "cannot send a friend request to yourself")
	}

	if _, err := s.users.GetUser(ctx, addresseeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return nil, apperr.Storage(err)
	}

	existing, err := s.relationships.GetFriendshipByPair(ctx, requesterID, addresseeID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Storage(err)
	}

	if existing != nil {
		switch existing.Status {
		case store.FriendshipPending:
			if existing.RequesterID == requesterID {
				return nil, apperr.New(apperr.CodeDuplicateRequest, "friend request already sent")
			}
			return nil, apperr.New(apperr.CodeDuplicateRequest, "this user already sent you a friend request")
		case store.FriendshipAccepted:
			return nil, apperr.New(apperr.CodeAlreadyFriends, "already friends")
		case store.FriendshipRejected, store.FriendshipCancelled:
			// Terminal outcome: the pair starts a fresh lifecycle
			if err := s.relationships.DeleteFriendship(ctx, existing.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Storage(err)
			}
		}
	}

	now := time.Now().UTC()
	f := &store.Friendship{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      store.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.relationships.CreateFriendship(ctx, f); err != nil {
		if errors.Is(err, store.ErrDuplicatePair) {
			// Another request for the pair landed between our read and write
			return nil, apperr.New(apperr.CodeDuplicateRequest, "friend request already exists")
		}
		return nil, apperr.Storage(err)
	}

	s.touchActivity(ctx, requesterID, now)
	s.logger.Info("friend request sent",
		"friendship_id", f.ID,
		"requester", requesterID,
		"addressee", addresseeID,
	)
	return f, nil
}

// Accept transitions a pending request to accepted. Only the addressee may
// accept.
func (s *Service) Accept(ctx context.Context, friendshipID, actingUserID string) (*store.Friendship, error) {
	return s.resolve(ctx, friendshipID, actingUserID, store.FriendshipAccepted)
}

// Reject transitions a pending request to rejected. Only the addressee may
// reject.
func (s *Service) Reject(ctx context.Context, friendshipID, actingUserID string) (*store.Friendship, error) {
	return s.resolve(ctx, friendshipID, actingUserID, store.FriendshipRejected)
}

// Cancel transitions a pending request to cancelled. Only the requester may
// cancel.
func (s *Service) Cancel(ctx context.Context, friendshipID, actingUserID string) (*store.Friendship, error) {
	return s.resolve(ctx, friendshipID, actingUserID, store.FriendshipCancelled)
}

// resolve applies a pending-to-terminal transition with the role guard for
// the target status. The store-level conditional update decides races: the
// loser of a concurrent accept/cancel observes invalid_state.
func (s *Service) resolve(ctx context.Context, friendshipID, actingUserID string, to store.FriendshipStatus) (*store.Friendship, error) {
	f, err := s.relationships.GetFriendship(ctx, friendshipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "friendship not found")
		}
		return nil, apperr.Storage(err)
	}

	switch to {
	case store.FriendshipAccepted, store.FriendshipRejected:
		if f.AddresseeID != actingUserID {
			return nil, apperr.New(apperr.CodeForbidden, "only the addressee may respond to a friend request")
		}
	case store.FriendshipCancelled:
		if f.RequesterID != actingUserID {
			return nil, apperr.New(apperr.CodeForbidden, "only the requester may cancel a friend request")
		}
	}

	if f.Status != store.FriendshipPending {
		return nil, apperr.New(apperr.CodeInvalidState, "friend request is no longer pending")
	}

	now := time.Now().UTC()
	err = s.relationships.UpdateFriendshipStatus(ctx, friendshipID, store.FriendshipPending, to, now)
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			return nil, apperr.New(apperr.CodeInvalidState, "friend request is no longer pending")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "friendship not found")
		}
		return nil, apperr.Storage(err)
	}

	f.Status = to
	f.UpdatedAt = now

	s.touchActivity(ctx, actingUserID, now)
	s.logger.Info("friend request resolved",
		"friendship_id", friendshipID,
		"status", string(to),
		"actor", actingUserID,
	)
	return f, nil
}

// ListWithStatus returns every other user annotated with the viewer-relative
// state. Actionable incoming requests sort first, the remainder
// alphabetically by name.
func (s *Service) ListWithStatus(ctx context.Context, viewerID string) ([]*Contact, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	friendships, err := s.relationships.ListFriendshipsFor(ctx, viewerID)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	// Index rows by counterpart id; each pair has at most one row
	byCounterpart := make(map[string]*store.Friendship, len(friendships))
	for _, f := range friendships {
		counterpart := f.RequesterID
		if counterpart == viewerID {
			counterpart = f.AddresseeID
		}
		byCounterpart[counterpart] = f
	}

	contacts := make([]*Contact, 0, len(users))
	for _, u := range users {
		if u.ID == viewerID {
			continue
		}
		contact := &Contact{User: u, Status: StatusNone}
		if f, ok := byCounterpart[u.ID]; ok {
			contact.Status = DeriveViewerStatus(f, viewerID)
			contact.FriendshipID = f.ID
		}
		contacts = append(contacts, contact)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		iPending := contacts[i].Status == StatusPendingReceived
		jPending := contacts[j].Status == StatusPendingReceived
		if iPending != jPending {
			return iPending
		}
		return lessByName(contacts[i].User, contacts[j].User)
	})

	return contacts, nil
}

// ListFriends returns only accepted counterparts, alphabetical by name.
func (s *Service) ListFriends(ctx context.Context, viewerID string) ([]*store.User, error) {
	contacts, err := s.ListWithStatus(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var friends []*store.User
	for _, c := range contacts {
		if c.Status == StatusAccepted {
			friends = append(friends, c.User)
		}
	}
	return friends, nil
}

func lessByName(a, b *store.User) bool {
	if a.FirstName != b.FirstName {
		return a.FirstName < b.FirstName
	}
	if a.LastName != b.LastName {
		return a.LastName < b.LastName
	}
	return a.ID < b.ID
}

// touchActivity is best-effort; a missing row only logs.
func (s *Service) touchActivity(ctx context.Context, userID string, at time.Time) {
	if err := s.users.TouchLastActive(ctx, userID, at); err != nil {
		s.logger.Warn("failed to touch last_active", "user_id", userID, "error", err)
	}
}

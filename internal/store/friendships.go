// ABOUTME: SQLite persistence for friendship rows
// ABOUTME: Conditional status updates enforce the pending-to-terminal lifecycle

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const friendshipColumns = `id, requester_id, addressee_id, status, created_at, updated_at`

// CreateFriendship inserts a new friendship row.
// Returns ErrDuplicatePair if a row already exists for the unordered pair.
func (s *SQLiteStore) CreateFriendship(ctx context.Context, f *Friendship) error {
	query := `
		INSERT INTO friendships (id, requester_id, addressee_id, pair_key, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		f.ID,
		f.RequesterID,
		f.AddresseeID,
		pairKey(f.RequesterID, f.AddresseeID),
		string(f.Status),
		fmtTime(f.CreatedAt),
		fmtTime(f.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicatePair
		}
		return fmt.Errorf("inserting friendship: %w", err)
	}

	s.logger.Debug("created friendship",
		"id", f.ID,
		"requester", f.RequesterID,
		"addressee", f.AddresseeID,
	)
	return nil
}

// GetFriendship retrieves a friendship by ID.
// Returns ErrNotFound if the row doesn't exist.
func (s *SQLiteStore) GetFriendship(ctx context.Context, id string) (*Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE id = ?`
	return s.scanFriendship(s.db.QueryRowContext(ctx, query, id))
}

// GetFriendshipByPair retrieves the row for an unordered user pair,
// whichever direction the request was sent in.
// Returns ErrNotFound if no row exists for the pair.
func (s *SQLiteStore) GetFriendshipByPair(ctx context.Context, userA, userB string) (*Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE pair_key = ?`
	return s.scanFriendship(s.db.QueryRowContext(ctx, query, pairKey(userA, userB)))
}

func (s *SQLiteStore) scanFriendship(row *sql.Row) (*Friendship, error) {
	var f Friendship
	var status, createdAtStr, updatedAtStr string

	err := row.Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &status, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning friendship: %w", err)
	}

	f.Status = FriendshipStatus(status)

	f.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	f.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &f, nil
}

// UpdateFriendshipStatus transitions a row from one status to another as a
// single conditional write. When accept and cancel race on the same pending
// row, exactly one caller wins; the other gets ErrStaleStatus (or
// ErrNotFound if the row is gone entirely).
func (s *SQLiteStore) UpdateFriendshipStatus(ctx context.Context, id string, from, to FriendshipStatus, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE friendships
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), fmtTime(at), id, string(from))
	if err != nil {
		return fmt.Errorf("updating friendship status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Debug("friendship status changed", "id", id, "from", from, "to", to)
		return nil
	}

	// Distinguish a missing row from a lost race
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM friendships WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking friendship existence: %w", err)
	}
	return ErrStaleStatus
}

// DeleteFriendship hard-deletes a friendship row. Used when a terminal
// (rejected/cancelled) row is superseded by a fresh request; terminal
// history is not retained.
// Returns ErrNotFound if the row doesn't exist.
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM friendships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting friendship: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted friendship", "id", id)
	return nil
}

// ListFriendshipsFor returns every friendship row involving the user, in
// either direction.
func (s *SQLiteStore) ListFriendshipsFor(ctx context.Context, userID string) ([]*Friendship, error) {
	query := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE requester_id = ? OR addressee_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying friendships: %w", err)
	}
	defer rows.Close()

	var friendships []*Friendship
	for rows.Next() {
		var f Friendship
		var status, createdAtStr, updatedAtStr string

		if err := rows.Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &status, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning friendship row: %w", err)
		}

		f.Status = FriendshipStatus(status)

		f.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		f.UpdatedAt, err = parseTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		friendships = append(friendships, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friendship rows: %w", err)
	}

	return friendships, nil
}

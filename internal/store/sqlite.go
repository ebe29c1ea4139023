// ABOUTME: SQLite implementation of the store interfaces using modernc.org/sqlite
// ABOUTME: Provides user/friendship/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			first_name  TEXT NOT NULL,
			last_name   TEXT NOT NULL,
			email       TEXT NOT NULL UNIQUE,
			last_active TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS friendships (
			id           TEXT PRIMARY KEY,
			requester_id TEXT NOT NULL,
			addressee_id TEXT NOT NULL,
			pair_key     TEXT NOT NULL UNIQUE,
			status       TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,

			CHECK (requester_id != addressee_id),
			CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled'))
		);

		CREATE INDEX IF NOT EXISTS idx_friendships_requester ON friendships(requester_id);
		CREATE INDEX IF NOT EXISTS idx_friendships_addressee ON friendships(addressee_id);

		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			sender_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content     TEXT NOT NULL,
			is_read     INTEGER NOT NULL DEFAULT 0,
			read_at     TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,

			CHECK (sender_id != receiver_id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread
			ON messages(receiver_id, is_read);

		CREATE INDEX IF NOT EXISTS idx_messages_pair_created
			ON messages(sender_id, receiver_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// pairKey returns the order-independent key identifying a user pair. It
// backs the UNIQUE constraint that allows at most one friendship row per
// unordered pair.
func pairKey(userA, userB string) string {
	if userA < userB {
		return userA + "|" + userB
	}
	return userB + "|" + userA
}

// timeLayout is RFC3339 with a fixed nine-digit fraction. The fixed width
// keeps lexical TEXT ordering identical to chronological ordering, so
// messages created within the same second still list in creation order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// fmtTime formats a timestamp the way every table stores them.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp. Accepts both fractional and
// whole-second RFC3339 values.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// CreateUser inserts a roster row. Used by the bootstrap command and tests;
// user lifecycle is otherwise owned outside this process.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, email, last_active)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		fmtTime(user.LastActive),
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, first_name, last_name, email, last_active
		FROM users
		WHERE id = ?
	`

	var user User
	var lastActiveStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&lastActiveStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.LastActive, err = parseTime(lastActiveStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_active: %w", err)
	}

	return &user, nil
}

// ListUsers returns every roster row ordered alphabetically by name.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, first_name, last_name, email, last_active
		FROM users
		ORDER BY first_name, last_name, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var lastActiveStr string

		if err := rows.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &lastActiveStr); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}

		user.LastActive, err = parseTime(lastActiveStr)
		if err != nil {
			return nil, fmt.Errorf("parsing last_active: %w", err)
		}

		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	return users, nil
}

// TouchLastActive updates the activity timestamp for a user.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active = ? WHERE id = ?`,
		fmtTime(at), userID,
	)
	if err != nil {
		return fmt.Errorf("updating last_active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure SQLiteStore implements the aggregate Store interface
var _ Store = (*SQLiteStore)(nil)

// ABOUTME: SQLite persistence for direct messages and their read state
// ABOUTME: Read marking is an atomic false-to-true transition per row

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = `id, sender_id, receiver_id, content, is_read, read_at, created_at, updated_at`

// CreateMessage inserts a new message row.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_read, read_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var readAt any
	if m.ReadAt != nil {
		readAt = fmtTime(*m.ReadAt)
	}

	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.SenderID,
		m.ReceiverID,
		m.Content,
		m.IsRead,
		readAt,
		fmtTime(m.CreatedAt),
		fmtTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("created message", "id", m.ID, "sender", m.SenderID, "receiver", m.ReceiverID)
	return nil
}

// GetMessage retrieves a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	var m Message
	var readAt sql.NullString
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		&m.IsRead,
		&readAt,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	if err := fillMessageTimes(&m, readAt, createdAtStr, updatedAtStr); err != nil {
		return nil, err
	}

	return &m, nil
}

// fillMessageTimes parses the stored timestamp strings into the message.
func fillMessageTimes(m *Message, readAt sql.NullString, createdAtStr, updatedAtStr string) error {
	var err error

	if readAt.Valid {
		t, err := parseTime(readAt.String)
		if err != nil {
			return fmt.Errorf("parsing read_at: %w", err)
		}
		m.ReadAt = &t
	}

	m.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}

	m.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}

	return nil
}

// ListConversation returns all messages between the pair, either direction,
// in ascending creation order.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var readAt sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &readAt, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		if err := fillMessageTimes(&m, readAt, createdAtStr, updatedAtStr); err != nil {
			return nil, err
		}

		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// MarkMessageRead flips is_read from false to true and stamps read_at, as a
// single conditional write so concurrent read-marking produces exactly one
// read receipt. Returns ErrAlreadyRead if the message was read before this
// call, ErrNotFound if it doesn't exist.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1, read_at = ?, updated_at = ?
		WHERE id = ? AND is_read = 0
	`, fmtTime(at), fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking message existence: %w", err)
	}
	return ErrAlreadyRead
}

// MarkConversationRead marks every unread message from senderID to
// receiverID as read and returns how many rows changed. Already-read rows
// keep their original read_at.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1, read_at = ?, updated_at = ?
		WHERE sender_id = ? AND receiver_id = ? AND is_read = 0
	`, fmtTime(at), fmtTime(at), senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("marked conversation read",
			"sender", senderID,
			"receiver", receiverID,
			"count", rowsAffected,
		)
	}
	return rowsAffected, nil
}

// UpdateMessageContent replaces the text of a message.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET content = ?, updated_at = ?
		WHERE id = ?
	`, content, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("updating message content: %w", err)
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

// DeleteMessage hard-deletes a message row.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted message", "id", id)
	return nil
}

// CountUnread returns the number of unread messages addressed to the user.
func (s *SQLiteStore) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0`,
		receiverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

// CountUnreadFrom returns the number of unread messages addressed to the
// user from one specific sender.
func (s *SQLiteStore) CountUnreadFrom(ctx context.Context, receiverID, senderID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`,
		receiverID, senderID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages from sender: %w", err)
	}
	return count, nil
}

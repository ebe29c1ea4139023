// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with three
// specialized interfaces:
//
//   - UserStore: roster reads plus last_active updates
//   - RelationshipStore: friendship rows and their status lifecycle
//   - ConversationStore: messages and read/delete state
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries. Services depend
// on the narrow interface they need.
//
// # Lifecycle guards
//
// Status transitions are conditional writes, not read-modify-write:
//
//	UPDATE friendships SET status = ? WHERE id = ? AND status = 'pending'
//	UPDATE messages SET is_read = 1 ... WHERE id = ? AND is_read = 0
//
// A zero-row update is resolved to ErrNotFound (row gone) or ErrStaleStatus
// / ErrAlreadyRead (lost race or repeat call). This is what makes
// concurrent accept/cancel on one friendship yield exactly one winner.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC TEXT with a fixed nine-digit
// fraction, so lexical column ordering matches chronological ordering.
// Use NewSQLiteStore(":memory:") for tests.
package store

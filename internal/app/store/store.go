/*
Package store provides the authoritative, concurrency-safe, durable
repository of users and chat messages.

Two implementations satisfy the Store interface: FileStore (in-memory state
persisted as JSON files, the default) and PostgresStore (pgx-backed, selected
when a database DSN is configured).
*/
package store

import (
	"context"
	"errors"
	"time"

	"linechat/internal/app/user"
	"linechat/internal/protocol"
)

// Sentinel errors the session layer matches on. Callers use errors.Is so
// implementations may wrap these with context.
var (
	// ErrUserExists is returned when a registration collides with an
	// existing username (case-insensitive).
	ErrUserExists = errors.New("username already taken")

	// ErrUserNotFound is returned when no account matches the username or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrWrongPassword is returned when the password does not match the
	// stored hash. Kept distinct from ErrUserNotFound for logs and tests;
	// the session presents both identically to clients.
	ErrWrongPassword = errors.New("incorrect password")
)

// SearchQuery bundles the search criteria. Zero-valued fields are wildcards;
// the dispatcher guarantees at least one is set before calling Search.
type SearchQuery struct {
	// Query matches message content by case-insensitive substring.
	Query string

	// Username matches the sender exactly, case-insensitively.
	Username string

	// From and To bound the message timestamp, both inclusive.
	From *time.Time
	To   *time.Time
}

// Store is the single source of truth for users and messages. Reads may run
// concurrently; mutations are serialized with each other and with reads on
// the structures they touch. All state survives process restart.
type Store interface {
	// RegisterUser creates an account, persisting it durably before
	// returning. Fails with ErrUserExists on a case-insensitive collision.
	RegisterUser(ctx context.Context, username, password string) (*user.User, error)

	// Authenticate verifies credentials, failing with ErrUserNotFound or
	// ErrWrongPassword.
	Authenticate(ctx context.Context, username, password string) (*user.User, error)

	// GetUserByID looks up an account by its ID, for token-based login.
	GetUserByID(ctx context.Context, id string) (*user.User, error)

	// SaveMessage appends msg to the durable log. The log stays ordered by
	// message ID regardless of the order concurrent saves arrive in.
	SaveMessage(ctx context.Context, msg *protocol.StoredMessage) error

	// History returns the most recent limit messages in chronological
	// order; limit <= 0 or limit >= total returns the entire log.
	History(ctx context.Context, limit int) ([]*protocol.StoredMessage, error)

	// Search returns the messages matching every non-empty criterion, in
	// insertion order (oldest first).
	Search(ctx context.Context, q SearchQuery) ([]*protocol.StoredMessage, error)

	// Close releases the store's resources.
	Close() error
}

// Snapshot is a point-in-time export of the store's state, consumed by the
// backup service.
type Snapshot struct {
	Users    []byte // JSON array of users
	Messages []byte // JSON array of messages
	TakenAt  time.Time
}

// Exporter is implemented by stores that can export their full state.
type Exporter interface {
	ExportSnapshot(ctx context.Context) (*Snapshot, error)
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"linechat/internal/app/user"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/randx"
	"linechat/internal/protocol"
)

const (
	usersFile    = "users.json"
	messagesFile = "messages.json"
)

// FileStore keeps users and messages in memory and persists them as JSON
// files in a data directory. A sync.RWMutex protects the in-memory state so
// multiple goroutines can read concurrently while writes are serialized; the
// durable-write step happens under the same write lock so two mutations never
// interleave their persisted snapshots.
type FileStore struct {
	mu       sync.RWMutex
	users    map[string]*user.User     // keyed by lower-case username
	byID     map[string]*user.User     // keyed by user ID
	messages []*protocol.StoredMessage // ordered by message ID
	dataDir  string

	// bcryptCost is bcrypt.DefaultCost in production; tests lower it.
	bcryptCost int

	logger zerolog.Logger
}

var _ Store = (*FileStore)(nil)
var _ Exporter = (*FileStore)(nil)

// NewFileStore creates (or reopens) a FileStore backed by files in dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	s := &FileStore{
		users:      make(map[string]*user.User),
		byID:       make(map[string]*user.User),
		dataDir:    dataDir,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logx.Logger().With().Str("component", "filestore").Logger(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("data_dir", dataDir).
		Int("users", len(s.users)).
		Int("messages", len(s.messages)).
		Msg("File store opened")

	return s, nil
}

// RegisterUser creates a new account and persists the user set before
// returning. The in-memory insert is rolled back if the durable write fails,
// keeping memory and disk consistent.
func (s *FileStore) RegisterUser(ctx context.Context, username, password string) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("store: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := s.users[key]; exists {
		return nil, fmt.Errorf("%w: %q", ErrUserExists, username)
	}

	u := &user.User{
		ID:           randx.UserID(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	s.users[key] = u
	s.byID[u.ID] = u

	if err := s.saveUsersLocked(); err != nil {
		delete(s.users, key)
		delete(s.byID, u.ID)
		return nil, fmt.Errorf("store: persist users: %w", err)
	}

	return u, nil
}

// Authenticate verifies credentials and returns the matching account.
func (s *FileStore) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(username)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}

	return u, nil
}

// GetUserByID looks up an account by its ID.
func (s *FileStore) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrUserNotFound, id)
	}
	return u, nil
}

// SaveMessage inserts msg into the log, keeping the log ordered by message
// ID, and persists it before returning. Workers may deliver messages out of
// submission order; the ID-ordered insert restores the global append order.
func (s *FileStore) SaveMessage(ctx context.Context, msg *protocol.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.messages)
	if idx > 0 && s.messages[idx-1].ID > msg.ID {
		idx = sort.Search(len(s.messages), func(i int) bool {
			return s.messages[i].ID > msg.ID
		})
	}

	s.messages = append(s.messages, nil)
	copy(s.messages[idx+1:], s.messages[idx:])
	s.messages[idx] = msg

	if err := s.saveMessagesLocked(); err != nil {
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		return fmt.Errorf("store: persist messages: %w", err)
	}

	return nil
}

// History returns the last limit messages in chronological order. A limit of
// zero or less, or one at least the log length, returns the entire log.
func (s *FileStore) History(ctx context.Context, limit int) ([]*protocol.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.messages)
	if limit <= 0 || limit >= total {
		out := make([]*protocol.StoredMessage, total)
		copy(out, s.messages)
		return out, nil
	}

	out := make([]*protocol.StoredMessage, limit)
	copy(out, s.messages[total-limit:])
	return out, nil
}

// Search returns messages matching all non-empty criteria (AND logic), in
// insertion order.
func (s *FileStore) Search(ctx context.Context, q SearchQuery) ([]*protocol.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(q.Query)

	out := []*protocol.StoredMessage{}
	for _, m := range s.messages {
		if needle != "" && !strings.Contains(strings.ToLower(m.Content), needle) {
			continue
		}
		if q.Username != "" && !strings.EqualFold(m.Username, q.Username) {
			continue
		}
		if q.From != nil && m.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && m.Timestamp.After(*q.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ExportSnapshot marshals the current users and messages for the backup
// service.
func (s *FileStore) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := json.Marshal(s.userListLocked())
	if err != nil {
		return nil, fmt.Errorf("store: marshal users snapshot: %w", err)
	}

	messages, err := json.Marshal(s.messages)
	if err != nil {
		return nil, fmt.Errorf("store: marshal messages snapshot: %w", err)
	}

	return &Snapshot{Users: users, Messages: messages, TakenAt: time.Now().UTC()}, nil
}

// Close is a no-op; all writes are flushed synchronously.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() error {
	if data, err := os.ReadFile(filepath.Join(s.dataDir, usersFile)); err == nil {
		var users []*user.User
		if err := json.Unmarshal(data, &users); err != nil {
			return fmt.Errorf("store: parse %s: %w", usersFile, err)
		}
		for _, u := range users {
			s.users[strings.ToLower(u.Username)] = u
			s.byID[u.ID] = u
		}
	}

	if data, err := os.ReadFile(filepath.Join(s.dataDir, messagesFile)); err == nil {
		if err := json.Unmarshal(data, &s.messages); err != nil {
			return fmt.Errorf("store: parse %s: %w", messagesFile, err)
		}
	}

	return nil
}

func (s *FileStore) userListLocked() []*user.User {
	users := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (s *FileStore) saveUsersLocked() error {
	return writeJSONFile(filepath.Join(s.dataDir, usersFile), s.userListLocked())
}

func (s *FileStore) saveMessagesLocked() error {
	return writeJSONFile(filepath.Join(s.dataDir, messagesFile), s.messages)
}

// writeJSONFile writes v atomically: marshal to a temp file in the same
// directory, then rename over the target.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

package chat

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"linechat/internal/app/store"
	"linechat/internal/app/user"
	"linechat/internal/pkg/randx"
	"linechat/internal/protocol"
)

// stubStore is an in-memory store.Store for exercising the chat layer
// without touching the filesystem.
type stubStore struct {
	mu       sync.Mutex
	users    map[string]*user.User // lowercased username
	messages []*protocol.StoredMessage

	saveErr error
}

func newStubStore() *stubStore {
	return &stubStore{users: make(map[string]*user.User)}
}

func (s *stubStore) RegisterUser(_ context.Context, username, password string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := s.users[key]; ok {
		return nil, store.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	u := &user.User{ID: randx.UserID(), Username: username, PasswordHash: string(hash)}
	s.users[key] = u
	return u, nil
}

func (s *stubStore) Authenticate(_ context.Context, username, password string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, store.ErrWrongPassword
	}
	return u, nil
}

func (s *stubStore) GetUserByID(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *stubStore) SaveMessage(_ context.Context, msg *protocol.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *stubStore) History(_ context.Context, limit int) ([]*protocol.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*protocol.StoredMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *stubStore) Search(_ context.Context, q store.SearchQuery) ([]*protocol.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*protocol.StoredMessage
	for _, m := range s.messages {
		if q.Query != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(q.Query)) {
			continue
		}
		if q.Username != "" && !strings.EqualFold(m.Username, q.Username) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

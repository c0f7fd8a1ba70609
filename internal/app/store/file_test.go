package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linechat/internal/pkg/randx"
	"linechat/internal/protocol"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func testMessage(id, username, content string, ts time.Time) *protocol.StoredMessage {
	return &protocol.StoredMessage{
		ID:        id,
		UserID:    "uid-" + username,
		Username:  username,
		Content:   content,
		Timestamp: ts,
	}
}

func TestFileStore_RegisterUser(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	u, err := s.RegisterUser(ctx, "Alice", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Alice", u.Username)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := s.RegisterUser(ctx, "Alice", "other")
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("duplicate differs only in case", func(t *testing.T) {
		_, err := s.RegisterUser(ctx, "ALICE", "other")
		assert.ErrorIs(t, err, ErrUserExists)
	})
}

func TestFileStore_Authenticate(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	registered, err := s.RegisterUser(ctx, "Bob", "secret-pw")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "correct credentials", username: "Bob", password: "secret-pw"},
		{name: "username case is ignored", username: "bob", password: "secret-pw"},
		{name: "wrong password", username: "Bob", password: "nope", wantErr: ErrWrongPassword},
		{name: "unknown user", username: "Carol", password: "secret-pw", wantErr: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := s.Authenticate(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, registered.ID, u.ID)
			// Original casing is preserved regardless of how login spelled it.
			assert.Equal(t, "Bob", u.Username)
		})
	}
}

func TestFileStore_GetUserByID(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	registered, err := s.RegisterUser(ctx, "Dave", "pw")
	require.NoError(t, err)

	u, err := s.GetUserByID(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dave", u.Username)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFileStore_History(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := testMessage(fmt.Sprintf("%020d", i), "eve", fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.SaveMessage(ctx, msg))
	}

	t.Run("limit returns most recent in order", func(t *testing.T) {
		msgs, err := s.History(ctx, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "message 3", msgs[0].Content)
		assert.Equal(t, "message 4", msgs[1].Content)
	})

	t.Run("limit zero returns everything", func(t *testing.T) {
		msgs, err := s.History(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 5)
	})

	t.Run("limit above count returns everything", func(t *testing.T) {
		msgs, err := s.History(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, msgs, 5)
	})

	t.Run("result is a copy", func(t *testing.T) {
		msgs, err := s.History(ctx, 0)
		require.NoError(t, err)
		msgs[0] = nil

		again, err := s.History(ctx, 0)
		require.NoError(t, err)
		assert.NotNil(t, again[0])
	})
}

func TestFileStore_SaveMessageKeepsIDOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	ts := time.Now().UTC()
	// Insert out of order to simulate persistence workers racing.
	for _, id := range []string{"00000000000000000003", "00000000000000000001", "00000000000000000002"} {
		require.NoError(t, s.SaveMessage(ctx, testMessage(id, "frank", "m"+id, ts)))
	}

	msgs, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "00000000000000000001", msgs[0].ID)
	assert.Equal(t, "00000000000000000002", msgs[1].ID)
	assert.Equal(t, "00000000000000000003", msgs[2].ID)
}

func TestFileStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		username string
		content  string
		offset   time.Duration
	}{
		{"alice", "Deploy is done", 0},
		{"bob", "deploy broke staging", time.Minute},
		{"alice", "lunch anyone?", 2 * time.Minute},
	}
	for i, m := range seed {
		msg := testMessage(fmt.Sprintf("%020d", i), m.username, m.content, base.Add(m.offset))
		require.NoError(t, s.SaveMessage(ctx, msg))
	}

	t.Run("content query is case-insensitive", func(t *testing.T) {
		msgs, err := s.Search(ctx, SearchQuery{Query: "DEPLOY"})
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("criteria combine with AND", func(t *testing.T) {
		msgs, err := s.Search(ctx, SearchQuery{Query: "deploy", Username: "bob"})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "deploy broke staging", msgs[0].Content)
	})

	t.Run("time range bounds are inclusive", func(t *testing.T) {
		from := base.Add(time.Minute)
		to := base.Add(2 * time.Minute)
		msgs, err := s.Search(ctx, SearchQuery{From: &from, To: &to})
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("no matches returns empty slice", func(t *testing.T) {
		msgs, err := s.Search(ctx, SearchQuery{Query: "zzz"})
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestFileStore_RestartRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	registered, err := s.RegisterUser(ctx, "Grace", "pw")
	require.NoError(t, err)
	require.NoError(t, s.SaveMessage(ctx, testMessage("00000000000000000001", "Grace", "hello", time.Now().UTC())))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	u, err := reopened.Authenticate(ctx, "grace", "pw")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	msgs, err := reopened.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestFileStore_ExportSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.RegisterUser(ctx, "Heidi", "pw")
	require.NoError(t, err)
	require.NoError(t, s.SaveMessage(ctx, testMessage("00000000000000000001", "Heidi", "hi", time.Now().UTC())))

	snap, err := s.ExportSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.TakenAt.IsZero())

	var users []json.RawMessage
	require.NoError(t, json.Unmarshal(snap.Users, &users))
	assert.Len(t, users, 1)

	var msgs []json.RawMessage
	require.NoError(t, json.Unmarshal(snap.Messages, &msgs))
	assert.Len(t, msgs, 1)
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			msg := testMessage(randx.MessageID(), "ivan", "concurrent", time.Now().UTC())
			assert.NoError(t, s.SaveMessage(ctx, msg))
		}()
	}
	wg.Wait()

	msgs, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].ID, msgs[i].ID)
	}
}

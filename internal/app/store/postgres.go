package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"linechat/internal/app/user"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/randx"
	"linechat/internal/protocol"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore implements Store on a pgx connection pool. Durability and
// mutation serialization come from the database itself; the primary key on
// the message ID keeps the log in insertion order.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ Store = (*PostgresStore)(nil)
var _ Exporter = (*PostgresStore)(nil)

// NewPostgresStore initializes a connection pool and runs pending migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("store: create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "pgstore").Logger(),
	}, nil
}

// runMigrations applies all pending migrations from the embedded filesystem.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}

	return nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// RegisterUser creates a new account; the unique index on lower(username)
// enforces the case-insensitive collision rule.
func (s *PostgresStore) RegisterUser(ctx context.Context, username, password string) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("store: hash password: %w", err)
	}

	u := &user.User{
		ID:           randx.UserID(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	query := `INSERT INTO users (id, username, password_hash, created_at)
			  VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, query, u.ID, u.Username, u.PasswordHash, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q", ErrUserExists, username)
		}
		return nil, fmt.Errorf("store: insert user: %w", err)
	}

	return u, nil
}

// Authenticate verifies credentials against the stored bcrypt hash.
func (s *PostgresStore) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	var u user.User
	query := `SELECT id, username, password_hash, created_at
			  FROM users WHERE lower(username) = lower($1)`

	err := s.pool.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("store: get user by username: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}

	return &u, nil
}

// GetUserByID looks up an account by its ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	query := `SELECT id, username, password_hash, created_at
			  FROM users WHERE id = $1`

	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %s", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("store: get user by id: %w", err)
	}

	return &u, nil
}

// SaveMessage appends msg to the message log.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *protocol.StoredMessage) error {
	query := `INSERT INTO messages (id, user_id, username, content, sent_at)
			  VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.pool.Exec(ctx, query, msg.ID, msg.UserID, msg.Username, msg.Content, msg.Timestamp); err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// History returns the most recent limit messages in chronological order.
func (s *PostgresStore) History(ctx context.Context, limit int) ([]*protocol.StoredMessage, error) {
	var rows pgx.Rows
	var err error

	if limit <= 0 {
		rows, err = s.pool.Query(ctx, `SELECT id, user_id, username, content, sent_at FROM messages ORDER BY id`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT id, user_id, username, content, sent_at FROM messages ORDER BY id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}

	out, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	if limit > 0 {
		// The LIMIT query reads newest-first; restore chronological order.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	return out, nil
}

// Search returns messages matching every non-empty criterion, oldest first.
func (s *PostgresStore) Search(ctx context.Context, q SearchQuery) ([]*protocol.StoredMessage, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Query != "" {
		conds = append(conds, fmt.Sprintf("content ILIKE %s", arg("%"+q.Query+"%")))
	}
	if q.Username != "" {
		conds = append(conds, fmt.Sprintf("lower(username) = lower(%s)", arg(q.Username)))
	}
	if q.From != nil {
		conds = append(conds, fmt.Sprintf("sent_at >= %s", arg(*q.From)))
	}
	if q.To != nil {
		conds = append(conds, fmt.Sprintf("sent_at <= %s", arg(*q.To)))
	}

	query := `SELECT id, user_id, username, content, sent_at FROM messages`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query search: %w", err)
	}

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]*protocol.StoredMessage, error) {
	defer rows.Close()

	out := []*protocol.StoredMessage{}
	for rows.Next() {
		var m protocol.StoredMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return out, nil
}

// ExportSnapshot exports all users and messages for the backup service.
func (s *PostgresStore) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, password_hash, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: query users snapshot: %w", err)
	}

	var users []*user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		users = append(users, &u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate users: %w", err)
	}

	messages, err := s.History(ctx, 0)
	if err != nil {
		return nil, err
	}

	usersJSON, err := json.Marshal(users)
	if err != nil {
		return nil, fmt.Errorf("store: marshal users snapshot: %w", err)
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("store: marshal messages snapshot: %w", err)
	}

	return &Snapshot{Users: usersJSON, Messages: messagesJSON, TakenAt: time.Now().UTC()}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

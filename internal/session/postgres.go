package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"efakture/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in the bff_sessions table so they survive
// restarts and can be shared by several server instances.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgresStore returns a Store backed by pool. The table is created by
// migrations/001_sessions.sql.
func NewPostgresStore(pool *pgxpool.Pool, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{pool: pool, ttl: ttl}
}

func (s *PostgresStore) Create(ctx context.Context, backendToken string, user core.User) (*Session, error) {
	sess := newSession(s.ttl, backendToken, user, time.Now().UTC())
	profile, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode session user: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bff_sessions (id, backend_token, user_profile, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.BackendToken, profile, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		sess    Session
		profile []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, backend_token, user_profile, created_at, expires_at
		FROM bff_sessions
		WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&sess.ID, &sess.BackendToken, &profile, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(profile, &sess.User); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id string, user core.User) error {
	profile, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE bff_sessions SET user_profile = $2 WHERE id = $1 AND expires_at > now()`,
		id, profile,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM bff_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bff_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

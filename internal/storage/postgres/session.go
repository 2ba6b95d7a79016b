package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/mishramart/internal/domain/auth"
)

const (
	getSessionSQL = `SELECT token_hash, user_id, email, expires_at
		FROM sessions WHERE token_hash = $1`

	createSessionSQL = `INSERT INTO sessions (token_hash, user_id, email, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at`
)

var _ auth.SessionRepository = (*SessionRepository)(nil)

// SessionRepository persists shopper sessions in PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindSession returns the session for tokenHash or auth.ErrUnauthenticated.
func (r *SessionRepository) FindSession(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var s auth.Session
	err := r.pool.QueryRow(ctx, getSessionSQL, tokenHash).Scan(&s.TokenHash, &s.UserID, &s.Email, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthenticated
		}
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return &s, nil
}

// CreateSession stores s.
func (r *SessionRepository) CreateSession(ctx context.Context, s *auth.Session) error {
	if _, err := r.pool.Exec(ctx, createSessionSQL, s.TokenHash, s.UserID, s.Email, s.ExpiresAt); err != nil {
		return fmt.Errorf("creating session for %q: %w", s.UserID, err)
	}
	return nil
}

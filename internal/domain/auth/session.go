package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated = errors.New("please log in to continue")
	// ErrForbidden is returned when a valid credential lacks the required scope.
	ErrForbidden = errors.New("forbidden")
)

// Session is an authenticated shopper session established by the identity
// provider. Only the token hash is stored.
type Session struct {
	TokenHash string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionRepository persists shopper sessions.
type SessionRepository interface {
	FindSession(ctx context.Context, tokenHash string) (*Session, error)
	CreateSession(ctx context.Context, s *Session) error
}

type userKey struct{}

// WithUser returns a context carrying the authenticated session.
func WithUser(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, userKey{}, s)
}

// UserFrom extracts the authenticated session from ctx.
func UserFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(userKey{}).(*Session)
	return s, ok && s != nil
}

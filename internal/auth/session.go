package auth

import (
	"context"
	"time"
)

// Session identifies the logged-in user for one request sequence.
type Session struct {
	ID        string
	UserID    uint
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

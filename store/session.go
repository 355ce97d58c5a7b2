package store

import (
	"context"
	"strings"
)

// Session is the authenticated identity attached to a request.
type Session struct {
	Email    string
	FullName string
	Roles    []string
}

func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type sessionKey struct{}

// WithSession attaches the session to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached to ctx.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.Email == "" {
		return Session{}, false
	}
	return s, true
}

// Package session keeps server-side sessions for signed-in browser and API users.
// The browser only ever holds a signed session ID; the backend token stays here.
package session

import (
	"context"
	"errors"
	"time"

	"efakture/internal/core"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// DefaultTTL matches the lifetime of the backend session cookie.
const DefaultTTL = 7 * 24 * time.Hour

// Session ties a BFF session ID to the backend session token and the
// profile returned at sign-in.
type Session struct {
	ID           string
	BackendToken string
	User         core.User
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether s is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Actor returns the role-tagged actor for the session user.
func (s Session) Actor() core.Actor {
	return core.ActorFor(&s.User)
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create stores a new session for user and returns it with a fresh ID.
	Create(ctx context.Context, backendToken string, user core.User) (*Session, error)

	// Get returns the session with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdateUser replaces the cached profile, e.g. after the backend reports a new
	// verification state.
	UpdateUser(ctx context.Context, id string, user core.User) error

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// Purge removes all expired sessions and returns how many were removed.
	Purge(ctx context.Context) (int, error)
}

func newSession(ttl time.Duration, backendToken string, user core.User, now time.Time) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Session{
		ID:           uuid.NewString(),
		BackendToken: backendToken,
		User:         user,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

package domain

import (
	"context"
	"time"
)

// Session is a server-side login session. The ID is an opaque identifier
// held by the client inside a signed cookie; the record itself is ephemeral
// and lives in the session store, not the database.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
}

// SessionStore defines storage for live sessions. Implementations (in-memory,
// Redis) are swappable; expired sessions behave as absent.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	// Get returns the session for the given id, or ErrNotFound if the id is
	// unknown or the session has expired.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// RevokeUser removes every live session belonging to the user.
	RevokeUser(ctx context.Context, userID int64) error
}

package domain

import (
	"context"
	"time"
)

// User represents a registered user of the application.
//
// The digest fields hold bcrypt hashes; the corresponding plaintext secrets
// (password, remember token, activation token, reset token) are never
// persisted. An empty digest means the credential of that kind is not set.
type User struct {
	ID               int64
	Name             string
	Email            string
	PasswordHash     string
	RememberDigest   string
	ActivationDigest string
	Activated        bool
	ActivatedAt      *time.Time
	ResetDigest      string
	ResetSentAt      *time.Time
	Admin            bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserRepository defines persistence operations for users.
//
// Emails are compared case-insensitively; callers normalize (lower-case,
// trim) before every lookup. Deleting a user cascades to their microposts
// and to every relationship on either side.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	// SetRememberDigest updates only the remember digest. An empty digest
	// revokes the persistent login ("forget").
	SetRememberDigest(ctx context.Context, id int64, digest string) error
	Delete(ctx context.Context, id int64) error
	ListActivated(ctx context.Context, limit, offset int) ([]User, error)
	CountActivated(ctx context.Context) (int, error)
}

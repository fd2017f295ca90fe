package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmlarsen/flock/internal/domain"
)

// UserService serves user lookups, listings, and account removal.
type UserService struct {
	users    domain.UserRepository
	sessions domain.SessionStore
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, sessions domain.SessionStore) *UserService {
	return &UserService{users: users, sessions: sessions}
}

// Get retrieves a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns one page of activated users.
func (s *UserService) List(ctx context.Context, page int) ([]domain.User, error) {
	limit, offset := pageBounds(page, usersPerPage)
	return s.users.ListActivated(ctx, limit, offset)
}

// Destroy deletes a user. The database cascades the removal to the user's
// microposts and to every relationship on either side; any live sessions
// are revoked.
func (s *UserService) Destroy(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

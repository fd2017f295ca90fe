package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmlarsen/flock/internal/domain"
)

const (
	maxMicropostLength = 140
	micropostsPerPage  = 20
)

// MicropostService manages posting and deleting microposts.
type MicropostService struct {
	microposts domain.MicropostRepository
}

// NewMicropostService creates a new MicropostService.
func NewMicropostService(microposts domain.MicropostRepository) *MicropostService {
	return &MicropostService{microposts: microposts}
}

// Create posts a new micropost for the author after validating the content.
func (s *MicropostService) Create(ctx context.Context, author *domain.User, content string) (*domain.Micropost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content can't be blank", domain.ErrInvalidInput)
	}
	// Limits are character counts, not bytes.
	if utf8.RuneCountInString(content) > maxMicropostLength {
		return nil, fmt.Errorf("%w: content is too long (maximum is %d characters)", domain.ErrInvalidInput, maxMicropostLength)
	}

	post := &domain.Micropost{UserID: author.ID, Content: content}
	if err := s.microposts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create micropost: %w", err)
	}
	return post, nil
}

// Delete removes a micropost. Only the author may delete their own posts.
func (s *MicropostService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	post, err := s.microposts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get micropost: %w", err)
	}
	if post.UserID != actor.ID {
		return domain.ErrUnauthorized
	}
	if err := s.microposts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete micropost: %w", err)
	}
	return nil
}

// ByUser returns one page of a user's posts, newest first.
func (s *MicropostService) ByUser(ctx context.Context, userID int64, page int) ([]domain.Micropost, error) {
	limit, offset := pageBounds(page, micropostsPerPage)
	return s.microposts.ByUser(ctx, userID, limit, offset)
}

// CountByUser returns a user's total post count.
func (s *MicropostService) CountByUser(ctx context.Context, userID int64) (int, error) {
	return s.microposts.CountByUser(ctx, userID)
}

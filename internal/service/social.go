package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmlarsen/flock/internal/domain"
)

const (
	// DefaultCommunityFeedLimit caps how many posts from outside the
	// user's follow graph supplement the feed.
	DefaultCommunityFeedLimit = 10

	feedPerPage  = 20
	usersPerPage = 30
)

// SocialService manages the follow graph and the feed built from it.
type SocialService struct {
	relationships  domain.RelationshipRepository
	microposts     domain.MicropostRepository
	users          domain.UserRepository
	communityLimit int
}

// NewSocialService creates a new SocialService. communityLimit <= 0 selects
// the default community feed cap.
func NewSocialService(relationships domain.RelationshipRepository, microposts domain.MicropostRepository, users domain.UserRepository, communityLimit int) *SocialService {
	if communityLimit <= 0 {
		communityLimit = DefaultCommunityFeedLimit
	}
	return &SocialService{
		relationships:  relationships,
		microposts:     microposts,
		users:          users,
		communityLimit: communityLimit,
	}
}

// Follow creates a follow edge from the actor to the target user.
// Following yourself and following someone you already follow are both
// no-ops, including when a concurrent duplicate insert loses the
// uniqueness race.
func (s *SocialService) Follow(ctx context.Context, actor *domain.User, targetID int64) error {
	if actor.ID == targetID {
		return nil
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get target user: %w", err)
	}

	rel := &domain.Relationship{FollowerID: actor.ID, FollowedID: targetID}
	if err := s.relationships.Create(ctx, rel); err != nil {
		if errors.Is(err, domain.ErrAlreadyFollowing) {
			return nil
		}
		return fmt.Errorf("create relationship: %w", err)
	}
	return nil
}

// Unfollow removes the actor's follow edge to the target. Unfollowing
// someone you don't follow is a no-op.
func (s *SocialService) Unfollow(ctx context.Context, actor *domain.User, targetID int64) error {
	if err := s.relationships.Delete(ctx, actor.ID, targetID); err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

// UnfollowByEdge resolves a relationship id to its followed user and
// removes the edge. The edge must belong to the actor.
func (s *SocialService) UnfollowByEdge(ctx context.Context, actor *domain.User, relationshipID int64) (int64, error) {
	rel, err := s.relationships.GetByID(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("get relationship: %w", err)
	}
	if rel.FollowerID != actor.ID {
		return 0, domain.ErrUnauthorized
	}
	if err := s.Unfollow(ctx, actor, rel.FollowedID); err != nil {
		return 0, err
	}
	return rel.FollowedID, nil
}

// IsFollowing reports whether a follow edge exists from follower to followed.
func (s *SocialService) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	return s.relationships.Exists(ctx, followerID, followedID)
}

// Following returns one page of the users that userID follows.
func (s *SocialService) Following(ctx context.Context, userID int64, page int) ([]domain.User, error) {
	limit, offset := pageBounds(page, usersPerPage)
	return s.relationships.Following(ctx, userID, limit, offset)
}

// Followers returns one page of the users following userID.
func (s *SocialService) Followers(ctx context.Context, userID int64, page int) ([]domain.User, error) {
	limit, offset := pageBounds(page, usersPerPage)
	return s.relationships.Followers(ctx, userID, limit, offset)
}

// Counts returns the follower and following totals for a user.
func (s *SocialService) Counts(ctx context.Context, userID int64) (following, followers int, err error) {
	following, err = s.relationships.CountFollowing(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	followers, err = s.relationships.CountFollowers(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return following, followers, nil
}

// Feed returns one page of the user's feed: their own posts, posts from
// users they follow, and a bounded number of recent community posts.
func (s *SocialService) Feed(ctx context.Context, userID int64, page int) ([]domain.Micropost, error) {
	limit, offset := pageBounds(page, feedPerPage)
	return s.microposts.Feed(ctx, userID, s.communityLimit, limit, offset)
}

// pageBounds converts a 1-based page number into limit/offset.
func pageBounds(page, perPage int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}

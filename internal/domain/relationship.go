package domain

import (
	"context"
	"time"
)

// Relationship is a directed follow edge: the follower follows the followed
// user. The (follower_id, followed_id) pair is unique.
type Relationship struct {
	ID         int64
	FollowerID int64
	FollowedID int64
	CreatedAt  time.Time
}

// RelationshipRepository defines persistence operations for follow edges.
type RelationshipRepository interface {
	// Create inserts a follow edge. Inserting an edge that already exists
	// returns ErrAlreadyFollowing, including when a concurrent insert wins
	// the uniqueness race.
	Create(ctx context.Context, rel *Relationship) error
	GetByID(ctx context.Context, id int64) (*Relationship, error)
	// Delete removes the edge if present; deleting a missing edge is not
	// an error.
	Delete(ctx context.Context, followerID, followedID int64) error
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)
	Following(ctx context.Context, userID int64, limit, offset int) ([]User, error)
	Followers(ctx context.Context, userID int64, limit, offset int) ([]User, error)
	CountFollowing(ctx context.Context, userID int64) (int, error)
	CountFollowers(ctx context.Context, userID int64) (int, error)
}

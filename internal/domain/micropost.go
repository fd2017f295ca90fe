package domain

import (
	"context"
	"time"
)

// Micropost is a short message posted by a user. Posts are ordered by
// creation time, newest first, everywhere they appear.
type Micropost struct {
	ID        int64
	UserID    int64
	Content   string
	CreatedAt time.Time
}

// MicropostRepository defines persistence operations for microposts.
type MicropostRepository interface {
	Create(ctx context.Context, post *Micropost) error
	GetByID(ctx context.Context, id int64) (*Micropost, error)
	Delete(ctx context.Context, id int64) error
	ByUser(ctx context.Context, userID int64, limit, offset int) ([]Micropost, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	// Feed returns the user's feed: their own posts, posts from users they
	// follow, and at most communityLimit recent posts from other users.
	// The three sets are deduplicated and ordered by creation time
	// descending before limit/offset are applied.
	Feed(ctx context.Context, userID int64, communityLimit, limit, offset int) ([]Micropost, error)
}

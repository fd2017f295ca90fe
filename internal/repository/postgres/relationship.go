package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmlarsen/flock/internal/domain"
)

// RelationshipRepository implements domain.RelationshipRepository using PostgreSQL.
type RelationshipRepository struct {
	db *sql.DB
}

func (r *RelationshipRepository) Create(ctx context.Context, rel *domain.Relationship) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO relationships (follower_id, followed_id, created_at)
		 VALUES ($1, $2, $3) RETURNING id`,
		rel.FollowerID, rel.FollowedID, now,
	).Scan(&rel.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyFollowing
		}
		return fmt.Errorf("insert relationship: %w", err)
	}
	rel.CreatedAt = now
	return nil
}

func (r *RelationshipRepository) GetByID(ctx context.Context, id int64) (*domain.Relationship, error) {
	rel := &domain.Relationship{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, follower_id, followed_id, created_at
		 FROM relationships WHERE id = $1`, id,
	).Scan(&rel.ID, &rel.FollowerID, &rel.FollowedID, &rel.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query relationship by id: %w", err)
	}
	return rel, nil
}

func (r *RelationshipRepository) Delete(ctx context.Context, followerID, followedID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM relationships WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

func (r *RelationshipRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM relationships WHERE follower_id = $1 AND followed_id = $2)`,
		followerID, followedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query relationship exists: %w", err)
	}
	return exists, nil
}

func (r *RelationshipRepository) Following(ctx context.Context, userID int64, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id IN (SELECT followed_id FROM relationships WHERE follower_id = $1)
		 ORDER BY id LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query following: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *RelationshipRepository) Followers(ctx context.Context, userID int64, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id IN (SELECT follower_id FROM relationships WHERE followed_id = $1)
		 ORDER BY id LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query followers: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *RelationshipRepository) CountFollowing(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relationships WHERE follower_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count following: %w", err)
	}
	return count, nil
}

func (r *RelationshipRepository) CountFollowers(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relationships WHERE followed_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return count, nil
}

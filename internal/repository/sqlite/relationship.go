package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmlarsen/flock/internal/domain"
)

// RelationshipRepository implements domain.RelationshipRepository using SQLite.
type RelationshipRepository struct {
	db *sql.DB
}

func (r *RelationshipRepository) Create(ctx context.Context, rel *domain.Relationship) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO relationships (follower_id, followed_id, created_at)
		 VALUES (?, ?, ?)`,
		rel.FollowerID, rel.FollowedID, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrAlreadyFollowing
		}
		return fmt.Errorf("insert relationship: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	rel.ID = id
	rel.CreatedAt = now
	return nil
}

func (r *RelationshipRepository) GetByID(ctx context.Context, id int64) (*domain.Relationship, error) {
	rel := &domain.Relationship{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, follower_id, followed_id, created_at
		 FROM relationships WHERE id = ?`, id,
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
		`DELETE FROM relationships WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return nil
}

func (r *RelationshipRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM relationships WHERE follower_id = ? AND followed_id = ?)`,
		followerID, followedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query relationship exists: %w", err)
	}
	return exists, nil
}

func (r *RelationshipRepository) Following(ctx context.Context, userID int64, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id IN (SELECT followed_id FROM relationships WHERE follower_id = ?)
		 ORDER BY id LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query following: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *RelationshipRepository) Followers(ctx context.Context, userID int64, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id IN (SELECT follower_id FROM relationships WHERE followed_id = ?)
		 ORDER BY id LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query followers: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *RelationshipRepository) CountFollowing(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relationships WHERE follower_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count following: %w", err)
	}
	return count, nil
}

func (r *RelationshipRepository) CountFollowers(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relationships WHERE followed_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return count, nil
}

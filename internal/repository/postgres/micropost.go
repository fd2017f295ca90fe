package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmlarsen/flock/internal/domain"
)

// MicropostRepository implements domain.MicropostRepository using PostgreSQL.
type MicropostRepository struct {
	db *sql.DB
}

func (r *MicropostRepository) Create(ctx context.Context, post *domain.Micropost) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO microposts (user_id, content, created_at)
		 VALUES ($1, $2, $3) RETURNING id`,
		post.UserID, post.Content, now,
	).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("insert micropost: %w", err)
	}
	post.CreatedAt = now
	return nil
}

func (r *MicropostRepository) GetByID(ctx context.Context, id int64) (*domain.Micropost, error) {
	post := &domain.Micropost{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at FROM microposts WHERE id = $1`, id,
	).Scan(&post.ID, &post.UserID, &post.Content, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query micropost by id: %w", err)
	}
	return post, nil
}

func (r *MicropostRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM microposts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete micropost: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MicropostRepository) ByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Micropost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM microposts
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query microposts by user: %w", err)
	}
	defer rows.Close()
	return collectMicroposts(rows)
}

func (r *MicropostRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM microposts WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count microposts by user: %w", err)
	}
	return count, nil
}

// Feed mirrors the SQLite feed query: own and followed posts unioned with a
// capped community arm, deduplicated and ordered newest first.
func (r *MicropostRepository) Feed(ctx context.Context, userID int64, communityLimit, limit, offset int) ([]domain.Micropost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM (
			SELECT m.id, m.user_id, m.content, m.created_at
			FROM microposts m
			WHERE m.user_id = $1
			   OR m.user_id IN (SELECT followed_id FROM relationships WHERE follower_id = $1)
			UNION
			SELECT id, user_id, content, created_at FROM (
				SELECT m.id, m.user_id, m.content, m.created_at
				FROM microposts m
				WHERE m.user_id <> $1
				  AND m.user_id NOT IN (SELECT followed_id FROM relationships WHERE follower_id = $1)
				ORDER BY m.created_at DESC, m.id DESC
				LIMIT $2
			) community
		 ) feed
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, communityLimit, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()
	return collectMicroposts(rows)
}

func collectMicroposts(rows *sql.Rows) ([]domain.Micropost, error) {
	var posts []domain.Micropost
	for rows.Next() {
		var post domain.Micropost
		if err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan micropost: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

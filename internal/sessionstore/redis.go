package sessionstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmlarsen/flock/internal/domain"
)

// Redis stores sessions under "session:<id>" keys with a TTL, plus a
// "user_sessions:<user id>" set so every session for a user can be revoked
// in one pass.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis using the given URL and verifies the
// connection with a ping.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.DialTimeout = 5 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// Close releases the underlying client connections.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Create(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := r.client.Set(ctx, sessionKey(session.ID), session.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if err := r.client.SAdd(ctx, userKey(session.UserID), session.ID).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*domain.Session, error) {
	value, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session user id: %w", err)
	}

	ttl, err := r.client.TTL(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("session ttl: %w", err)
	}

	return &domain.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	value, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	if err := r.client.SRem(ctx, "user_sessions:"+value, id).Err(); err != nil {
		return fmt.Errorf("unindex session: %w", err)
	}
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Redis) RevokeUser(ctx context.Context, userID int64) error {
	ids, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}

	for _, id := range ids {
		if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	if err := r.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session index: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(userID int64) string {
	return "user_sessions:" + strconv.FormatInt(userID, 10)
}

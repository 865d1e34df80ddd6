package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openhearth/passgate/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStorage holds challenges and sessions. Both are short-lived, so the
// keys carry a TTL and Redis prunes them on its own.
type RedisStorage struct {
	client       *redis.Client
	challengeTTL time.Duration
}

func NewRedisStorage(client *redis.Client, challengeTTL time.Duration) *RedisStorage {
	return &RedisStorage{
		client:       client,
		challengeTTL: challengeTTL,
	}
}

func (r *RedisStorage) GetChallenge(ctx context.Context, username string) (*models.Challenge, error) {
	key := fmt.Sprintf("challenge:%s", username)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	var challenge models.Challenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	return &challenge, nil
}

func (r *RedisStorage) PutChallenge(ctx context.Context, username string, challenge models.Challenge) error {
	key := fmt.Sprintf("challenge:%s", username)

	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	ttl := r.challengeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}

	return nil
}

func (r *RedisStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := fmt.Sprintf("session:%s", sessionID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (r *RedisStorage) PutSession(ctx context.Context, session models.Session) error {
	key := fmt.Sprintf("session:%s", session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

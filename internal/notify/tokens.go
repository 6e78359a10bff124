// Package notify implements the push notification gateway: device push
// tokens live in Redis, and notification jobs are published to NATS for the
// push worker fleet to deliver. Everything here is best-effort; a failed
// push never surfaces past a log line.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// tokenPrefix is the Redis key prefix for per-user device token sets.
	tokenPrefix = "push:tokens:"

	// tokenTTL expires a user's token set if no device refreshes it. Devices
	// re-register on app start, so a stale set just means no pushes until
	// the next launch.
	tokenTTL = 90 * 24 * time.Hour
)

// TokenStore manages device push tokens in Redis.
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a token store backed by the given Redis client.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// Register adds a device token to the user's set and refreshes the TTL.
func (s *TokenStore) Register(ctx context.Context, userID, token string) error {
	key := tokenPrefix + userID

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, token)
	pipe.Expire(ctx, key, tokenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notify: register token: %w", err)
	}
	return nil
}

// Remove deletes a device token from the user's set, e.g. on logout or when
// the push gateway reports the token dead.
func (s *TokenStore) Remove(ctx context.Context, userID, token string) error {
	if err := s.client.SRem(ctx, tokenPrefix+userID, token).Err(); err != nil {
		return fmt.Errorf("notify: remove token: %w", err)
	}
	return nil
}

// TokensOf returns all registered device tokens for a user.
func (s *TokenStore) TokensOf(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.client.SMembers(ctx, tokenPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: list tokens: %w", err)
	}
	return tokens, nil
}

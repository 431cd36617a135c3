package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

const (
	keyPrefix       = "portal:refresh:"
	successorPrefix = "portal:refresh:next:"
	maxForgetHops   = 8
)

// RefreshCache remembers, for a short grace window, which pair a refresh
// token was rotated into.
// Key format: portal:refresh:<sha256(refresh_token)>
// Successor index: portal:refresh:next:<sha256(new_refresh_token)> -> spent key
type RefreshCache struct {
	client *redis.Client
}

// NewRefreshCache creates a RefreshCache wrapping the given Redis client.
func NewRefreshCache(client *redis.Client) *RefreshCache {
	return &RefreshCache{client: client}
}

// Lookup returns the pair stored for refreshToken, or nil if none is.
func (c *RefreshCache) Lookup(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	raw, err := c.client.Get(ctx, c.key(refreshToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("refresh cache lookup: %w", err)
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, fmt.Errorf("refresh cache decode: %w", err)
	}
	return &pair, nil
}

// Store records pair under refreshToken for ttl.
func (c *RefreshCache) Store(ctx context.Context, refreshToken string, pair domain.TokenPair, ttl time.Duration) error {
	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("refresh cache encode: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key(refreshToken), raw, ttl)
		pipe.Set(ctx, c.successorKey(pair.RefreshToken), c.key(refreshToken), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh cache store: %w", err)
	}
	return nil
}

// Forget walks back from refreshToken through the rotations still inside
// their grace window and deletes each entry.
func (c *RefreshCache) Forget(ctx context.Context, refreshToken string) error {
	next := c.successorKey(refreshToken)
	for i := 0; i < maxForgetHops; i++ {
		spent, err := c.client.Get(ctx, next).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("refresh cache forget: %w", err)
		}
		if err := c.client.Del(ctx, next, spent).Err(); err != nil {
			return fmt.Errorf("refresh cache forget: %w", err)
		}
		next = successorPrefix + strings.TrimPrefix(spent, keyPrefix)
	}
	return nil
}

func (c *RefreshCache) key(refreshToken string) string {
	return keyPrefix + tokenHash(refreshToken)
}

func (c *RefreshCache) successorKey(refreshToken string) string {
	return successorPrefix + tokenHash(refreshToken)
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

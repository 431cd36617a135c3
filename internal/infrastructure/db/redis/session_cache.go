package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// SessionCache stores the non-sensitive session subset per browser
// session key.
// Key format: portal:session:<browser_session_key>
// Logout marker: portal:session:<browser_session_key>:revoked -> unix nanos
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a SessionCache. A non-positive ttl falls back to
// thirty days.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionCache{client: client, ttl: ttl}
}

// For returns the persister bound to one browser session key.
func (c *SessionCache) For(sessionKey string) ports.SessionPersister {
	return &sessionEntry{cache: c, key: "portal:session:" + sessionKey}
}

type sessionEntry struct {
	cache *SessionCache
	key   string
}

func (e *sessionEntry) Load(ctx context.Context) (*domain.PersistedSession, error) {
	raw, err := e.cache.client.Get(ctx, e.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session cache load: %w", err)
	}

	var s domain.PersistedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("session cache decode: %w", err)
	}
	return &s, nil
}

func (e *sessionEntry) Save(ctx context.Context, s domain.PersistedSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session cache encode: %w", err)
	}
	return e.cache.client.Set(ctx, e.key, raw, e.cache.ttl).Err()
}

func (e *sessionEntry) Clear(ctx context.Context) error {
	return e.cache.client.Del(ctx, e.key).Err()
}

func (e *sessionEntry) Revoke(ctx context.Context, at time.Time) error {
	err := e.cache.client.Set(ctx, e.key+":revoked", strconv.FormatInt(at.UnixNano(), 10), e.cache.ttl).Err()
	if err != nil {
		return fmt.Errorf("session cache revoke: %w", err)
	}
	return nil
}

func (e *sessionEntry) RevokedSince(ctx context.Context, since time.Time) (bool, error) {
	at, err := e.cache.client.Get(ctx, e.key+":revoked").Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("session cache revoked: %w", err)
	}
	return at >= since.UnixNano(), nil
}

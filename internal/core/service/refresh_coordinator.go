package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/medicaldate/clinic-portal/internal/api/metrics"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const defaultRefreshTimeout = 10 * time.Second

// Refresher obtains a fresh token pair for the holder of creds.
type Refresher interface {
	Refresh(ctx context.Context, creds ports.CredentialStore) (domain.TokenPair, error)
}

// RefreshOptions tunes a RefreshCoordinator. Zero values are valid.
type RefreshOptions struct {
	// Cache, when set, lets a rotated refresh token be replayed for Grace.
	Cache   ports.RefreshCache
	Grace   time.Duration
	Timeout time.Duration
}

// RefreshCoordinator collapses concurrent refreshes of the same refresh
// token into a single backend call whose outcome every caller shares.
type RefreshCoordinator struct {
	refresher ports.TokenRefresher
	cache     ports.RefreshCache
	grace     time.Duration
	timeout   time.Duration
	group     singleflight.Group
	inFlight  atomic.Int64
	log       zerolog.Logger
}

var _ GraceForgetter = (*RefreshCoordinator)(nil)

func NewRefreshCoordinator(refresher ports.TokenRefresher, opts RefreshOptions, log zerolog.Logger) *RefreshCoordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRefreshTimeout
	}
	return &RefreshCoordinator{
		refresher: refresher,
		cache:     opts.Cache,
		grace:     opts.Grace,
		timeout:   opts.Timeout,
		log:       log,
	}
}

// Refresh exchanges the refresh token held by creds for a new pair and
// writes it back. A rejected refresh token clears creds and returns
// domain.ErrRefreshExpired; transport failures leave creds untouched.
func (c *RefreshCoordinator) Refresh(ctx context.Context, creds ports.CredentialStore) (domain.TokenPair, error) {
	refreshToken, ok := creds.RefreshToken()
	if !ok || refreshToken == "" {
		metrics.RefreshTotal.WithLabelValues("no_token").Inc()
		return domain.TokenPair{}, domain.ErrNoRefreshToken
	}

	ch := c.group.DoChan(tokenKey(refreshToken), func() (interface{}, error) {
		return c.exchange(ctx, refreshToken)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.TokenPair{}, fmt.Errorf("refresh: %w", ctx.Err())
	}
	if res.Shared {
		metrics.RefreshSharedTotal.Inc()
	}

	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrRefreshExpired) {
			creds.Clear()
		}
		return domain.TokenPair{}, res.Err
	}

	pair := res.Val.(domain.TokenPair)
	creds.SetTokens(pair)
	return pair, nil
}

// Forget drops the grace entries that would still replay a rotation into
// refreshToken. It is a no-op without a cache.
func (c *RefreshCoordinator) Forget(ctx context.Context, refreshToken string) error {
	if c.cache == nil || refreshToken == "" {
		return nil
	}
	if err := c.cache.Forget(ctx, refreshToken); err != nil {
		return fmt.Errorf("forget refresh grace: %w", err)
	}
	return nil
}

// InFlight reports how many backend refresh calls are running right now.
func (c *RefreshCoordinator) InFlight() int {
	return int(c.inFlight.Load())
}

// exchange performs the backend call. It runs detached from the caller's
// cancellation so that callers sharing the flight are not failed by the one
// that started it going away.
func (c *RefreshCoordinator) exchange(parent context.Context, refreshToken string) (domain.TokenPair, error) {
	c.inFlight.Add(1)
	metrics.RefreshInFlight.Inc()
	defer func() {
		c.inFlight.Add(-1)
		metrics.RefreshInFlight.Dec()
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.timeout)
	defer cancel()

	if c.cache != nil {
		pair, err := c.cache.Lookup(ctx, refreshToken)
		if err != nil {
			c.log.Warn().Err(err).Msg("refresh grace lookup failed, calling backend")
		} else if pair != nil && pair.Valid() {
			metrics.RefreshTotal.WithLabelValues("cached").Inc()
			return *pair, nil
		}
	}

	pair, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshExpired) {
			metrics.RefreshTotal.WithLabelValues("expired").Inc()
			return domain.TokenPair{}, err
		}
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Msg("token refresh failed")
		return domain.TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	if !pair.Valid() {
		metrics.RefreshTotal.WithLabelValues("expired").Inc()
		return domain.TokenPair{}, fmt.Errorf("%w: incomplete token pair", domain.ErrRefreshExpired)
	}

	if c.cache != nil && c.grace > 0 {
		if err := c.cache.Store(ctx, refreshToken, pair, c.grace); err != nil {
			c.log.Warn().Err(err).Msg("failed to store refresh grace entry")
		}
	}

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	return pair, nil
}

func tokenKey(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

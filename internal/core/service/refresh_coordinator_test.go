package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type memCreds struct {
	mu      sync.Mutex
	access  string
	refresh string
	sets    int
	clears  int
}

func newMemCreds(access, refresh string) *memCreds {
	return &memCreds{access: access, refresh: refresh}
}

func (c *memCreds) AccessToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.access != ""
}

func (c *memCreds) RefreshToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh, c.refresh != ""
}

func (c *memCreds) SetTokens(p domain.TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access, c.refresh = p.AccessToken, p.RefreshToken
	c.sets++
}

func (c *memCreds) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access, c.refresh = "", ""
	c.clears++
}

type stubTokenRefresher struct {
	calls atomic.Int32
	gate  chan struct{}
	pair  domain.TokenPair
	err   error
	seen  chan string
}

func (r *stubTokenRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	r.calls.Add(1)
	if r.seen != nil {
		r.seen <- refreshToken
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return domain.TokenPair{}, ctx.Err()
		}
	}
	return r.pair, r.err
}

type stubRefreshCache struct {
	mu      sync.Mutex
	entries map[string]domain.TokenPair
	ttls    []time.Duration
}

func newStubRefreshCache() *stubRefreshCache {
	return &stubRefreshCache{entries: make(map[string]domain.TokenPair)}
}

func (c *stubRefreshCache) Lookup(_ context.Context, token string) (*domain.TokenPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[token]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *stubRefreshCache) Store(_ context.Context, token string, pair domain.TokenPair, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = pair
	c.ttls = append(c.ttls, ttl)
	return nil
}

func (c *stubRefreshCache) Forget(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for removed := true; removed; {
		removed = false
		for spent, pair := range c.entries {
			if pair.RefreshToken == token {
				delete(c.entries, spent)
				token = spent
				removed = true
			}
		}
	}
	return nil
}

var newPair = domain.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRefreshCoordinator_NoRefreshToken(t *testing.T) {
	backend := &stubTokenRefresher{pair: newPair}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())

	_, err := c.Refresh(context.Background(), newMemCreds("access-1", ""))
	if !errors.Is(err, domain.ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if got := backend.calls.Load(); got != 0 {
		t.Fatalf("expected no backend call, got %d", got)
	}
}

func TestRefreshCoordinator_Success(t *testing.T) {
	backend := &stubTokenRefresher{pair: newPair}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())
	creds := newMemCreds("access-1", "refresh-1")

	pair, err := c.Refresh(context.Background(), creds)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if pair != newPair {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	access, _ := creds.AccessToken()
	refresh, _ := creds.RefreshToken()
	if access != "access-2" || refresh != "refresh-2" {
		t.Fatalf("credentials not replaced: %q %q", access, refresh)
	}
	if c.InFlight() != 0 {
		t.Fatalf("expected no refresh in flight, got %d", c.InFlight())
	}
}

func TestRefreshCoordinator_RejectedClearsCredentials(t *testing.T) {
	backend := &stubTokenRefresher{err: domain.ErrRefreshExpired}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())
	creds := newMemCreds("access-1", "refresh-1")

	_, err := c.Refresh(context.Background(), creds)
	if !errors.Is(err, domain.ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
	if _, ok := creds.RefreshToken(); ok {
		t.Fatalf("expected credentials to be cleared")
	}
	if creds.clears != 1 {
		t.Fatalf("expected exactly one clear, got %d", creds.clears)
	}
}

func TestRefreshCoordinator_IncompletePairIsExpired(t *testing.T) {
	backend := &stubTokenRefresher{pair: domain.TokenPair{AccessToken: "only-access"}}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())
	creds := newMemCreds("access-1", "refresh-1")

	if _, err := c.Refresh(context.Background(), creds); !errors.Is(err, domain.ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
	if _, ok := creds.AccessToken(); ok {
		t.Fatalf("expected credentials to be cleared")
	}
}

func TestRefreshCoordinator_TransientErrorKeepsCredentials(t *testing.T) {
	backend := &stubTokenRefresher{err: domain.ErrUpstreamUnavailable}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())
	creds := newMemCreds("access-1", "refresh-1")

	_, err := c.Refresh(context.Background(), creds)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrRefreshExpired) {
		t.Fatalf("transient failure must not be terminal")
	}
	if refresh, _ := creds.RefreshToken(); refresh != "refresh-1" {
		t.Fatalf("credentials changed on transient failure: %q", refresh)
	}
}

func TestRefreshCoordinator_ConcurrentCallersShareOneRefresh(t *testing.T) {
	backend := &stubTokenRefresher{pair: newPair, gate: make(chan struct{})}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())

	const callers = 8
	var ready, done sync.WaitGroup
	ready.Add(callers)
	done.Add(callers)
	results := make([]domain.TokenPair, callers)
	errs := make([]error, callers)
	creds := make([]*memCreds, callers)

	for i := 0; i < callers; i++ {
		creds[i] = newMemCreds("access-1", "refresh-1")
		go func(i int) {
			defer done.Done()
			ready.Done()
			results[i], errs[i] = c.Refresh(context.Background(), creds[i])
		}(i)
	}

	ready.Wait()
	deadline := time.Now().Add(2 * time.Second)
	for c.InFlight() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	done.Wait()

	if got := backend.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one backend refresh, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if results[i] != newPair {
			t.Fatalf("caller %d: unexpected pair %+v", i, results[i])
		}
		if access, _ := creds[i].AccessToken(); access != "access-2" {
			t.Fatalf("caller %d: credentials not updated", i)
		}
	}
}

func TestRefreshCoordinator_CallerCancelDoesNotFailOthers(t *testing.T) {
	backend := &stubTokenRefresher{pair: newPair, gate: make(chan struct{}), seen: make(chan string, 1)}
	c := NewRefreshCoordinator(backend, RefreshOptions{}, zerolog.Nop())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Refresh(leaderCtx, newMemCreds("access-1", "refresh-1"))
		leaderErr <- err
	}()
	<-backend.seen

	follower := newMemCreds("access-1", "refresh-1")
	followerErr := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), follower)
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected leader to see context.Canceled, got %v", err)
	}

	close(backend.gate)
	if err := <-followerErr; err != nil {
		t.Fatalf("follower failed: %v", err)
	}
	if access, _ := follower.AccessToken(); access != "access-2" {
		t.Fatalf("follower credentials not updated: %q", access)
	}
}

func TestRefreshCoordinator_GraceCacheReplaysRotation(t *testing.T) {
	backend := &stubTokenRefresher{pair: newPair}
	cache := newStubRefreshCache()
	c := NewRefreshCoordinator(backend, RefreshOptions{Cache: cache, Grace: 30 * time.Second}, zerolog.Nop())

	if _, err := c.Refresh(context.Background(), newMemCreds("access-1", "refresh-1")); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if len(cache.ttls) != 1 || cache.ttls[0] != 30*time.Second {
		t.Fatalf("expected one grace entry with 30s ttl, got %v", cache.ttls)
	}

	// A second tab still holding the rotated token.
	other := newMemCreds("access-1", "refresh-1")
	pair, err := c.Refresh(context.Background(), other)
	if err != nil {
		t.Fatalf("replayed refresh failed: %v", err)
	}
	if pair != newPair {
		t.Fatalf("unexpected replayed pair: %+v", pair)
	}
	if got := backend.calls.Load(); got != 1 {
		t.Fatalf("expected grace cache to avoid a second backend call, got %d calls", got)
	}
}

func TestRefreshCoordinator_ForgetStopsGraceReplay(t *testing.T) {
	backend := &stubTokenRefresher{pair: newPair}
	cache := newStubRefreshCache()
	c := NewRefreshCoordinator(backend, RefreshOptions{Cache: cache, Grace: 30 * time.Second}, zerolog.Nop())

	if _, err := c.Refresh(context.Background(), newMemCreds("access-1", "refresh-1")); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if err := c.Forget(context.Background(), newPair.RefreshToken); err != nil {
		t.Fatalf("Forget returned error: %v", err)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("expected grace entry dropped, got %v", cache.entries)
	}

	backend.pair = domain.TokenPair{}
	backend.err = domain.ErrRefreshExpired
	replay := newMemCreds("access-1", "refresh-1")
	if _, err := c.Refresh(context.Background(), replay); !errors.Is(err, domain.ErrRefreshExpired) {
		t.Fatalf("expected spent token rejected after forget, got %v", err)
	}
	if _, ok := replay.RefreshToken(); ok {
		t.Fatalf("expected replaying credentials cleared")
	}
}

func TestRefreshCoordinator_ForgetWithoutCache(t *testing.T) {
	c := NewRefreshCoordinator(&stubTokenRefresher{}, RefreshOptions{}, zerolog.Nop())
	if err := c.Forget(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("expected no-op without cache, got %v", err)
	}
}

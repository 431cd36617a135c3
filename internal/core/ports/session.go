package ports

import (
	"context"
	"time"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// ProfileFetcher loads the current user's profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*domain.User, error)
}

// SessionTerminator ends the session on the backend.
type SessionTerminator interface {
	Terminate(ctx context.Context) error
}

// SessionPersister stores the non-sensitive session subset. Load returns
// (nil, nil) when nothing is stored.
//
// Revoke marks the browser session as logged out at the given time, for
// every request sharing it. RevokedSince reports whether that happened at
// or after since.
type SessionPersister interface {
	Load(ctx context.Context) (*domain.PersistedSession, error)
	Save(ctx context.Context, s domain.PersistedSession) error
	Clear(ctx context.Context) error
	Revoke(ctx context.Context, at time.Time) error
	RevokedSince(ctx context.Context, since time.Time) (bool, error)
}

// RefreshCache remembers the pair a refresh token was rotated into, for a
// short grace window.
type RefreshCache interface {
	Lookup(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Store(ctx context.Context, refreshToken string, pair domain.TokenPair, ttl time.Duration) error
	// Forget drops every entry that still resolves to the pair holding
	// refreshToken.
	Forget(ctx context.Context, refreshToken string) error
}

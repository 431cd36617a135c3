package ports

import (
	"context"
	"time"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// UserRecord is a mock-backend user together with its password hash.
type UserRecord struct {
	User         domain.User
	PasswordHash string
}

// UserRepository persists mock-backend accounts.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	// Upsert creates the account or replaces the one with the same email.
	Upsert(ctx context.Context, rec UserRecord) (*UserRecord, error)
}

// RefreshTokenRecord is a stored, hashed, single-use refresh token.
type RefreshTokenRecord struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// RefreshTokenRepository stores refresh tokens by hash.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token string, rec RefreshTokenRecord) error
	// Consume atomically looks the token up and deletes it.
	// It returns domain.ErrRefreshTokenInvalid for unknown or expired tokens.
	Consume(ctx context.Context, token string) (*RefreshTokenRecord, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

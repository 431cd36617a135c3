package ports

import (
	"context"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// AccessClaims are the fields the mock backend puts into access tokens.
type AccessClaims struct {
	UserID    string
	SessionID string
	Roles     []domain.Role
}

// MockAuthService implements the backend auth contract for local development.
type MockAuthService interface {
	Login(ctx context.Context, role domain.Role, email, password string) (domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Logout(ctx context.Context, claims AccessClaims) error
	Me(ctx context.Context, claims AccessClaims) (*domain.User, error)
	ParseAccessToken(token string) (*AccessClaims, error)
}

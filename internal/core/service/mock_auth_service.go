package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const mockIssuer = "clinic-portal-mock"

// MockAuthConfig configures token minting for the in-process backend.
type MockAuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// MockAuthService implements the backend credential contract for local
// development: bcrypt passwords, HS256 access tokens and single-use refresh
// tokens that rotate on every refresh.
type MockAuthService struct {
	users      ports.UserRepository
	tokens     ports.RefreshTokenRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewMockAuthService(users ports.UserRepository, tokens ports.RefreshTokenRepository, cfg MockAuthConfig) *MockAuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &MockAuthService{
		users:      users,
		tokens:     tokens,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

type mockClaims struct {
	SessionID string        `json:"sid"`
	Roles     []domain.Role `json:"roles"`
	jwt.RegisteredClaims
}

func (s *MockAuthService) Login(ctx context.Context, role domain.Role, email, password string) (domain.TokenPair, error) {
	if email == "" || password == "" {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.TokenPair{}, err
	}

	rec, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.TokenPair{}, domain.ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}
	if !rec.User.IsActive {
		return domain.TokenPair{}, domain.ErrUserInactive
	}
	if !rec.User.HasRole(role) {
		return domain.TokenPair{}, domain.ErrRoleNotGranted
	}

	return s.issue(ctx, &rec.User, uuid.NewString())
}

// Refresh consumes refreshToken and issues a new pair in the same session.
func (s *MockAuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, domain.ErrRefreshTokenInvalid
	}

	rec, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !rec.ExpiresAt.After(s.now()) {
		return domain.TokenPair{}, domain.ErrRefreshTokenInvalid
	}

	user, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.TokenPair{}, domain.ErrRefreshTokenInvalid
		}
		return domain.TokenPair{}, err
	}
	if !user.User.IsActive {
		return domain.TokenPair{}, domain.ErrRefreshTokenInvalid
	}

	return s.issue(ctx, &user.User, rec.SessionID)
}

// Logout revokes every refresh token of the caller's session.
func (s *MockAuthService) Logout(ctx context.Context, claims ports.AccessClaims) error {
	if claims.SessionID == "" {
		return nil
	}
	return s.tokens.DeleteBySession(ctx, claims.SessionID)
}

func (s *MockAuthService) Me(ctx context.Context, claims ports.AccessClaims) (*domain.User, error) {
	rec, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !rec.User.IsActive {
		return nil, domain.ErrUserInactive
	}
	u := rec.User.Clone()
	return u, nil
}

// ParseAccessToken validates an HS256 access token and returns its claims.
func (s *MockAuthService) ParseAccessToken(token string) (*ports.AccessClaims, error) {
	claims := &mockClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(mockIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, domain.ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return nil, domain.ErrInvalidCredentials
	}
	return &ports.AccessClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Roles:     claims.Roles,
	}, nil
}

// SeedAccount is one demo user for the mock backend.
type SeedAccount struct {
	User     domain.User
	Password string
}

// Seed upserts accounts and returns how many were written.
func (s *MockAuthService) Seed(ctx context.Context, accounts []SeedAccount) (int, error) {
	n := 0
	for _, a := range accounts {
		hash, err := HashPassword(a.Password)
		if err != nil {
			return n, err
		}
		u := a.User
		u.Email = normalizeEmail(u.Email)
		now := s.now().UTC()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		if _, err := s.users.Upsert(ctx, ports.UserRecord{User: u, PasswordHash: hash}); err != nil {
			return n, fmt.Errorf("seed %s: %w", u.Email, err)
		}
		n++
	}
	return n, nil
}

func (s *MockAuthService) issue(ctx context.Context, user *domain.User, sessionID string) (domain.TokenPair, error) {
	now := s.now()
	claims := mockClaims{
		SessionID: sessionID,
		Roles:     user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    mockIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := randomToken(32)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.tokens.Create(ctx, refresh, ports.RefreshTokenRecord{
		UserID:    user.ID,
		SessionID: sessionID,
		ExpiresAt: now.Add(s.refreshTTL),
	}); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

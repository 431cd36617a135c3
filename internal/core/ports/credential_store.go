package ports

import "github.com/medicaldate/clinic-portal/internal/core/domain"

// CredentialStore holds the access/refresh token pair for one browsing
// context. Only trusted gateway code may hold one.
type CredentialStore interface {
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	// SetTokens replaces both tokens at once.
	SetTokens(pair domain.TokenPair)
	Clear()
}

package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Session protocol errors.
var (
	// ErrNoRefreshToken means there is no credential to refresh; callers
	// treat it as "not logged in".
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshExpired means the backend rejected the refresh token. Terminal.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrSessionExpired means an authenticated call still failed auth after
	// one refresh attempt. Callers must tear the session down.
	ErrSessionExpired = errors.New("session expired")
	// ErrUpstreamUnavailable wraps transport failures talking to the backend.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Identity errors, used by the gateway handlers and the mock backend.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrUserInactive        = errors.New("user is inactive")
	ErrInvalidRole         = errors.New("invalid role")
	ErrRoleNotGranted      = errors.New("role not granted to user")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrForbidden           = errors.New("access forbidden")
)

// APIError is any non-2xx backend response other than an auth failure.
// It is recoverable locally and never forces a logout.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// NewAPIError builds an APIError, defaulting the message to the status text.
func NewAPIError(status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Status: status, Message: message}
}

// IsTerminalAuth reports whether err requires tearing the session down.
func IsTerminalAuth(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrRefreshExpired)
}

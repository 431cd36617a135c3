package ports

import (
	"context"
	"net/http"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// UpstreamRequest is one HTTP call to the backend. Body is already encoded
// so the same request can be sent twice.
type UpstreamRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Header http.Header
	// Bearer is attached as "Authorization: Bearer <token>" when non-empty.
	Bearer string
}

// UpstreamResponse is the raw backend reply.
type UpstreamResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport sends raw requests to the backend. A non-nil error means no
// response was received; every received status is returned as a response.
type Transport interface {
	Send(ctx context.Context, req UpstreamRequest) (*UpstreamResponse, error)
}

// TokenRefresher exchanges a refresh token for a new pair.
// It returns domain.ErrRefreshExpired when the backend rejects the token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// AuthBackend is the credential side of the backend contract.
type AuthBackend interface {
	TokenRefresher
	Login(ctx context.Context, role domain.Role, email, password string) (domain.TokenPair, error)
}

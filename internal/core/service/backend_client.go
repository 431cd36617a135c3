package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

// BackendClient speaks the backend's credential endpoints over a Transport.
type BackendClient struct {
	transport ports.Transport
}

func NewBackendClient(transport ports.Transport) *BackendClient {
	return &BackendClient{transport: transport}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token pair. Rejected credentials yield
// domain.ErrInvalidCredentials.
func (b *BackendClient) Login(ctx context.Context, role domain.Role, email, password string) (domain.TokenPair, error) {
	body, err := json.Marshal(loginBody{Email: email, Password: password})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("login: encode: %w", err)
	}

	resp, err := b.send(ctx, ports.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "/auth/login/" + string(role),
		Body:   body,
		Header: jsonHeader(),
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("login: %w", err)
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	case resp.Status == http.StatusForbidden:
		return domain.TokenPair{}, domain.ErrRoleNotGranted
	case resp.Status < 200 || resp.Status >= 300:
		return domain.TokenPair{}, apiErrorFrom(resp.Status, resp.Body)
	}

	var pair domain.TokenPair
	if err := DecodeEnvelope(resp.Body, &pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("login: %w", err)
	}
	if !pair.Valid() {
		return domain.TokenPair{}, fmt.Errorf("login: incomplete token pair")
	}
	return pair, nil
}

// Refresh presents refreshToken as a bearer credential. Rejections and
// unusable payloads yield domain.ErrRefreshExpired; 5xx responses are
// returned as *domain.APIError so a backend outage does not end the session.
func (b *BackendClient) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	resp, err := b.send(ctx, ports.UpstreamRequest{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Header: jsonHeader(),
		Bearer: refreshToken,
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	if resp.Status >= 500 {
		return domain.TokenPair{}, apiErrorFrom(resp.Status, resp.Body)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return domain.TokenPair{}, fmt.Errorf("%w: status %d", domain.ErrRefreshExpired, resp.Status)
	}

	var pair domain.TokenPair
	if err := DecodeEnvelope(resp.Body, &pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %v", domain.ErrRefreshExpired, err)
	}
	if !pair.Valid() {
		return domain.TokenPair{}, fmt.Errorf("%w: incomplete token pair", domain.ErrRefreshExpired)
	}
	return pair, nil
}

func (b *BackendClient) send(ctx context.Context, req ports.UpstreamRequest) (*ports.UpstreamResponse, error) {
	resp, err := b.transport.Send(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

func jsonHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

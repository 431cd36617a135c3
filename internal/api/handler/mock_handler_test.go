package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

type stubMockService struct {
	pair    domain.TokenPair
	err     error
	user    *domain.User
	refresh string
	logout  *ports.AccessClaims
}

func (s *stubMockService) Login(context.Context, domain.Role, string, string) (domain.TokenPair, error) {
	return s.pair, s.err
}

func (s *stubMockService) Refresh(_ context.Context, token string) (domain.TokenPair, error) {
	s.refresh = token
	return s.pair, s.err
}

func (s *stubMockService) Logout(_ context.Context, claims ports.AccessClaims) error {
	s.logout = &claims
	return s.err
}

func (s *stubMockService) Me(context.Context, ports.AccessClaims) (*domain.User, error) {
	return s.user, s.err
}

func (s *stubMockService) ParseAccessToken(string) (*ports.AccessClaims, error) {
	return nil, domain.ErrInvalidCredentials
}

func decodeEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return out
}

func TestMockHandler_LoginEnvelope(t *testing.T) {
	svc := &stubMockService{pair: domain.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}
	h := NewMockHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/mock-api/auth/login/admin", `{"email":"admin@medicaldate.com","password":"Demo1234!"}`)
	c.SetParamNames("role")
	c.SetParamValues("admin")

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	data, ok := env["data"].(map[string]any)
	if !ok || env["statusCode"] != float64(http.StatusOK) || data["accessToken"] != "acc" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestMockHandler_LoginErrors(t *testing.T) {
	cases := []struct {
		name   string
		role   string
		err    error
		status int
	}{
		{name: "unknown role", role: "nurse", status: http.StatusBadRequest},
		{name: "bad password", role: "doctor", err: domain.ErrInvalidCredentials, status: http.StatusUnauthorized},
		{name: "role not granted", role: "admin", err: domain.ErrRoleNotGranted, status: http.StatusForbidden},
		{name: "inactive", role: "patient", err: domain.ErrUserInactive, status: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMockHandler(&stubMockService{err: tc.err})
			c, rec := newTestContext(http.MethodPost, "/mock-api/auth/login/"+tc.role, `{"email":"x@medicaldate.com","password":"p"}`)
			c.SetParamNames("role")
			c.SetParamValues(tc.role)

			if err := h.Login(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			env := decodeEnvelope(t, rec.Body.Bytes())
			if env["statusCode"] != float64(tc.status) || env["message"] == nil {
				t.Fatalf("unexpected envelope %+v", env)
			}
		})
	}
}

func TestMockHandler_RefreshUsesBearer(t *testing.T) {
	svc := &stubMockService{pair: domain.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}}
	h := NewMockHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/mock-api/auth/refresh", "")
	c.Request().Header.Set("Authorization", "Bearer ref1")

	if err := h.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if svc.refresh != "ref1" || rec.Code != http.StatusOK {
		t.Fatalf("expected refresh with bearer token, got %q code %d", svc.refresh, rec.Code)
	}

	c, rec = newTestContext(http.MethodPost, "/mock-api/auth/refresh", "")
	if err := h.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rec.Code)
	}
}

func TestMockHandler_MeAndLogout(t *testing.T) {
	svc := &stubMockService{user: doctorUser()}
	h := NewMockHandler(svc)
	claims := &ports.AccessClaims{UserID: "usr_doctor", SessionID: "sid_1"}

	c, rec := newTestContext(http.MethodGet, "/mock-api/auth/me", "")
	c.Set(middleware.ClaimsKey, claims)
	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if data, ok := env["data"].(map[string]any); !ok || data["id"] != "usr_doctor" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	c, rec = newTestContext(http.MethodPost, "/mock-api/auth/logout", "")
	c.Set(middleware.ClaimsKey, claims)
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || svc.logout == nil || svc.logout.SessionID != "sid_1" {
		t.Fatalf("expected logout of session sid_1, got %+v", svc.logout)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

func TestBackendClient_Login(t *testing.T) {
	tr := &stubTransport{responses: []*ports.UpstreamResponse{
		resp(200, `{"data":{"accessToken":"a1","refreshToken":"r1"}}`),
	}}
	c := NewBackendClient(tr)

	pair, err := c.Login(context.Background(), domain.RoleSecretary, "secretary@medicaldate.com", "pw")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if pair.AccessToken != "a1" || pair.RefreshToken != "r1" {
		t.Fatalf("unexpected pair %+v", pair)
	}

	req := tr.requests[0]
	if req.Method != http.MethodPost || req.Path != "/auth/login/secretary" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	var body loginBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if body.Email != "secretary@medicaldate.com" || body.Password != "pw" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestBackendClient_LoginRejected(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrInvalidCredentials},
		{http.StatusForbidden, domain.ErrRoleNotGranted},
	}
	for _, tc := range cases {
		tr := &stubTransport{responses: []*ports.UpstreamResponse{resp(tc.status, `{"message":"no"}`)}}
		if _, err := NewBackendClient(tr).Login(context.Background(), domain.RoleAdmin, "a@b.c", "x"); !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}

	tr := &stubTransport{responses: []*ports.UpstreamResponse{resp(422, `{"message":["email must be an email"]}`)}}
	_, err := NewBackendClient(tr).Login(context.Background(), domain.RoleAdmin, "bad", "x")
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 422 {
		t.Fatalf("expected APIError 422, got %v", err)
	}
}

func TestBackendClient_Refresh(t *testing.T) {
	tr := &stubTransport{responses: []*ports.UpstreamResponse{
		resp(201, `{"statusCode":201,"data":{"accessToken":"a2","refreshToken":"r2"}}`),
	}}
	pair, err := NewBackendClient(tr).Refresh(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if pair.RefreshToken != "r2" {
		t.Fatalf("unexpected pair %+v", pair)
	}
	if tr.requests[0].Bearer != "r1" {
		t.Fatalf("expected refresh token as bearer, got %q", tr.requests[0].Bearer)
	}
}

func TestBackendClient_RefreshFailures(t *testing.T) {
	cases := []struct {
		name     string
		response *ports.UpstreamResponse
		terminal bool
	}{
		{"unauthorized", resp(401, `{"message":"Invalid refresh token"}`), true},
		{"bad request", resp(400, ``), true},
		{"garbage payload", resp(200, `not json`), true},
		{"missing refresh token", resp(200, `{"data":{"accessToken":"a2"}}`), true},
		{"server error", resp(503, `{"message":"maintenance"}`), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &stubTransport{responses: []*ports.UpstreamResponse{tc.response}}
			_, err := NewBackendClient(tr).Refresh(context.Background(), "r1")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, domain.ErrRefreshExpired); got != tc.terminal {
				t.Fatalf("expected terminal=%v, got %v (%v)", tc.terminal, got, err)
			}
		})
	}
}

func TestBackendClient_TransportError(t *testing.T) {
	tr := &stubTransport{err: errors.New("dial tcp: refused")}
	_, err := NewBackendClient(tr).Refresh(context.Background(), "r1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrRefreshExpired) {
		t.Fatalf("transport failure must not be terminal")
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/session"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

type stubProfiles struct {
	user  *domain.User
	err   error
	block bool
}

func (s *stubProfiles) FetchProfile(ctx context.Context) (*domain.User, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.user, s.err
}

type stubOpener struct {
	profiles *stubProfiles
}

func (o stubOpener) Open(c echo.Context) *session.Context {
	return &session.Context{
		Store: service.NewSessionStore(service.SessionDeps{Profiles: o.profiles}, zerolog.Nop()),
	}
}

func runGuard(t *testing.T, profiles *stubProfiles, req service.GuardRequirements, target string, timeout time.Duration) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(r, rec)

	called := false
	err := Guard(stubOpener{profiles: profiles}, req, timeout, zerolog.Nop())(func(c echo.Context) error {
		called = true
		if _, ok := c.Get(SessionKey).(domain.Session); !ok {
			t.Fatalf("session not set in context")
		}
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, called, err
}

func TestGuard_RedirectsAnonymousToLogin(t *testing.T) {
	profiles := &stubProfiles{err: domain.ErrNoRefreshToken}

	rec, called, err := runGuard(t, profiles, service.GuardRequirements{}, "/dashboard/doctor?tab=today", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("protected handler must not run")
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	want := "/login?next=%2Fdashboard%2Fdoctor%3Ftab%3Dtoday"
	if got := rec.Header().Get(echo.HeaderLocation); got != want {
		t.Fatalf("expected redirect to %q, got %q", want, got)
	}
}

func TestGuard_RedirectsWrongRoleToFallback(t *testing.T) {
	profiles := &stubProfiles{user: &domain.User{ID: "usr_patient", Roles: []domain.Role{domain.RolePatient}}}
	req := service.GuardRequirements{Roles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}, HomePath: "/dashboard/patient"}

	rec, called, err := runGuard(t, profiles, req, "/dashboard/admin", time.Second)
	if err != nil || called {
		t.Fatalf("expected redirect, got err=%v called=%v", err, called)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != "/dashboard/patient" {
		t.Fatalf("expected fallback redirect, got %q", got)
	}
}

func TestGuard_AuthorizesMatchingUser(t *testing.T) {
	profiles := &stubProfiles{user: &domain.User{ID: "usr_admin", Roles: []domain.Role{domain.RoleAdmin}}}
	req := service.GuardRequirements{
		Roles:       []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin},
		Permissions: []domain.Permission{domain.PermAnalyticsRead},
	}

	rec, called, err := runGuard(t, profiles, req, "/dashboard/admin", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected protected handler to run, code=%d", rec.Code)
	}
}

func TestGuard_UnfinishedCheckIsUnavailable(t *testing.T) {
	profiles := &stubProfiles{block: true}

	rec, called, err := runGuard(t, profiles, service.GuardRequirements{}, "/dashboard", 10*time.Millisecond)
	if called {
		t.Fatalf("protected handler must not run")
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

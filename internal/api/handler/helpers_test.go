package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/session"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
	"github.com/medicaldate/clinic-portal/internal/core/service"
	"github.com/medicaldate/clinic-portal/internal/infrastructure/cookie"
)

// ----------------------------------------------------------------------------
// Stubs
// ----------------------------------------------------------------------------

type stubProfiles struct {
	user *domain.User
	err  error
}

func (s *stubProfiles) FetchProfile(context.Context) (*domain.User, error) {
	return s.user, s.err
}

type stubTerminator struct {
	calls int
	err   error
}

func (s *stubTerminator) Terminate(context.Context) error {
	s.calls++
	return s.err
}

type testOpener struct {
	profiles   ports.ProfileFetcher
	terminator ports.SessionTerminator
	persister  ports.SessionPersister
}

func (o *testOpener) Open(c echo.Context) *session.Context {
	if sc, ok := c.Get("test.session").(*session.Context); ok {
		return sc
	}
	creds := cookie.NewStore(c, cookie.Policy{})
	sc := &session.Context{
		Credentials: creds,
		Store: service.NewSessionStore(service.SessionDeps{
			Profiles:    o.profiles,
			Terminator:  o.terminator,
			Credentials: creds,
			Persister:   o.persister,
		}, zerolog.Nop()),
	}
	c.Set("test.session", sc)
	return sc
}

// revokedPersister stores nothing and reports the browser session as
// logged out since revokedAt.
type revokedPersister struct {
	revokedAt time.Time
}

func (revokedPersister) Load(context.Context) (*domain.PersistedSession, error) { return nil, nil }
func (revokedPersister) Save(context.Context, domain.PersistedSession) error    { return nil }
func (revokedPersister) Clear(context.Context) error                            { return nil }
func (revokedPersister) Revoke(context.Context, time.Time) error                { return nil }

func (p revokedPersister) RevokedSince(_ context.Context, since time.Time) (bool, error) {
	return !p.revokedAt.Before(since), nil
}

type stubRecorder struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (r *stubRecorder) Enqueue(e domain.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *stubRecorder) types() []domain.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuthEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func newTestContext(method, target, body string, cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func tokenCookies(access, refresh string) []*http.Cookie {
	return []*http.Cookie{
		{Name: cookie.AccessTokenName, Value: access},
		{Name: cookie.RefreshTokenName, Value: refresh},
	}
}

// responseCookie returns the last Set-Cookie for name, the one a browser
// ends up with.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			found = ck
		}
	}
	return found
}

func doctorUser() *domain.User {
	return &domain.User{
		ID:        "usr_doctor",
		Email:     "doctor@medicaldate.com",
		FirstName: "Laura",
		LastName:  "Medina",
		IsActive:  true,
		Roles:     []domain.Role{domain.RoleDoctor},
	}
}

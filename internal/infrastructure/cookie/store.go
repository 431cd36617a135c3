// Package cookie keeps the token pair in HttpOnly cookies so that browser
// scripts never see it.
package cookie

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
	// SessionKeyName holds the random key of the persisted session snapshot.
	// It is not a credential.
	SessionKeyName = "portal_sid"

	defaultAccessMaxAge  = 7 * 24 * time.Hour
	defaultRefreshMaxAge = 30 * 24 * time.Hour
)

// Policy is the attribute set applied to every cookie the gateway writes.
type Policy struct {
	Secure        bool
	Domain        string
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.AccessMaxAge <= 0 {
		p.AccessMaxAge = defaultAccessMaxAge
	}
	if p.RefreshMaxAge <= 0 {
		p.RefreshMaxAge = defaultRefreshMaxAge
	}
	return p
}

// Store is a ports.CredentialStore bound to one echo request. Values written
// during the request shadow the inbound cookies, so a retry later in the
// same request sees the new tokens.
type Store struct {
	c      echo.Context
	policy Policy

	mu        sync.Mutex
	overrides map[string]string
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(c echo.Context, policy Policy) *Store {
	return &Store{c: c, policy: policy.withDefaults(), overrides: make(map[string]string)}
}

func (s *Store) AccessToken() (string, bool) {
	return s.get(AccessTokenName)
}

func (s *Store) RefreshToken() (string, bool) {
	return s.get(RefreshTokenName)
}

// SetTokens writes both cookies under one lock.
func (s *Store) SetTokens(pair domain.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(AccessTokenName, pair.AccessToken, s.policy.AccessMaxAge)
	s.write(RefreshTokenName, pair.RefreshToken, s.policy.RefreshMaxAge)
}

// Clear expires both cookies.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(AccessTokenName)
	s.expire(RefreshTokenName)
}

// SessionKey returns the browser session key, creating and setting one when
// create is true and the request has none.
func (s *Store) SessionKey(create bool) (string, bool) {
	if key, ok := s.get(SessionKeyName); ok {
		return key, true
	}
	if !create {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if key := s.overrides[SessionKeyName]; key != "" {
		return key, true
	}
	key := uuid.NewString()
	s.write(SessionKeyName, key, s.policy.RefreshMaxAge)
	return key, true
}

// ClearSessionKey expires the browser session key cookie.
func (s *Store) ClearSessionKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(SessionKeyName)
}

func (s *Store) get(name string) (string, bool) {
	s.mu.Lock()
	v, overridden := s.overrides[name]
	s.mu.Unlock()
	if overridden {
		return v, v != ""
	}

	ck, err := s.c.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (s *Store) write(name, value string, maxAge time.Duration) {
	s.overrides[name] = value
	s.c.SetCookie(s.cookie(name, value, int(maxAge.Seconds())))
}

func (s *Store) expire(name string) {
	s.overrides[name] = ""
	ck := s.cookie(name, "", -1)
	ck.Expires = time.Unix(0, 0)
	s.c.SetCookie(ck)
}

func (s *Store) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.policy.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.policy.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

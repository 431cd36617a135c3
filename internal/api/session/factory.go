// Package session assembles the per-request session state of the gateway:
// a cookie credential store, the SessionStore that owns the state and the
// persister of its non-sensitive subset.
package session

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
	"github.com/medicaldate/clinic-portal/internal/core/service"
	"github.com/medicaldate/clinic-portal/internal/infrastructure/cookie"
)

const contextKey = "portal.session"

// PersisterSource hands out the persister of one browser session key.
type PersisterSource interface {
	For(sessionKey string) ports.SessionPersister
}

// Context is the session state bound to one request.
type Context struct {
	Credentials *cookie.Store
	Store       *service.SessionStore
}

// Factory opens request-scoped session contexts.
type Factory struct {
	policy    cookie.Policy
	fetcher   *service.Fetcher
	grace     service.GraceForgetter
	persister PersisterSource
	log       zerolog.Logger
}

// NewFactory returns a Factory. grace and persister may be nil; without a
// persister nothing is kept between requests.
func NewFactory(policy cookie.Policy, fetcher *service.Fetcher, grace service.GraceForgetter, persister PersisterSource, log zerolog.Logger) *Factory {
	return &Factory{
		policy:    policy,
		fetcher:   fetcher,
		grace:     grace,
		persister: persister,
		log:       log,
	}
}

// Open returns the session context of c, creating it on first use so that
// middleware and handlers of one request share it.
func (f *Factory) Open(c echo.Context) *Context {
	if sc, ok := c.Get(contextKey).(*Context); ok {
		return sc
	}

	creds := cookie.NewStore(c, f.policy)
	account := service.NewAccount(f.fetcher, f.grace, creds)

	var persister ports.SessionPersister
	if f.persister != nil {
		persister = &lazyPersister{creds: creds, source: f.persister}
	}

	sc := &Context{
		Credentials: creds,
		Store: service.NewSessionStore(service.SessionDeps{
			Profiles:    account,
			Terminator:  account,
			Credentials: creds,
			Persister:   persister,
		}, f.log),
	}
	c.Set(contextKey, sc)
	return sc
}

// OpenWatch returns a store that re-verifies the session of c once the
// response headers are gone and cookies can no longer be written. It never
// rotates tokens or writes persisted state: an expired access token resolves
// anonymous and the browser has to refresh through a regular request.
func (f *Factory) OpenWatch(c echo.Context) *service.SessionStore {
	sc := f.Open(c)
	creds := readOnlyCredentials{inner: sc.Credentials}
	account := service.NewAccount(f.fetcher, nil, creds)

	var persister ports.SessionPersister
	if f.persister != nil {
		persister = watchPersister{inner: &lazyPersister{creds: sc.Credentials, source: f.persister}}
	}
	return service.NewSessionStore(service.SessionDeps{
		Profiles:    account,
		Credentials: creds,
		Persister:   persister,
	}, f.log)
}

// readOnlyCredentials hands out the access token only, so nothing behind it
// can start a refresh.
type readOnlyCredentials struct {
	inner ports.CredentialStore
}

func (r readOnlyCredentials) AccessToken() (string, bool) { return r.inner.AccessToken() }
func (readOnlyCredentials) RefreshToken() (string, bool)  { return "", false }
func (readOnlyCredentials) SetTokens(domain.TokenPair)    {}
func (readOnlyCredentials) Clear()                        {}

// watchPersister reads the persisted session and the logout marker but
// never changes them.
type watchPersister struct {
	inner ports.SessionPersister
}

func (w watchPersister) Load(ctx context.Context) (*domain.PersistedSession, error) {
	return w.inner.Load(ctx)
}

func (w watchPersister) RevokedSince(ctx context.Context, since time.Time) (bool, error) {
	return w.inner.RevokedSince(ctx, since)
}

func (watchPersister) Save(context.Context, domain.PersistedSession) error { return nil }
func (watchPersister) Clear(context.Context) error                         { return nil }
func (watchPersister) Revoke(context.Context, time.Time) error             { return nil }

// lazyPersister only issues a browser session key once there is something
// to store.
type lazyPersister struct {
	creds  *cookie.Store
	source PersisterSource
}

func (p *lazyPersister) Load(ctx context.Context) (*domain.PersistedSession, error) {
	key, ok := p.creds.SessionKey(false)
	if !ok {
		return nil, nil
	}
	return p.source.For(key).Load(ctx)
}

func (p *lazyPersister) Save(ctx context.Context, s domain.PersistedSession) error {
	key, _ := p.creds.SessionKey(true)
	return p.source.For(key).Save(ctx, s)
}

func (p *lazyPersister) Clear(ctx context.Context) error {
	key, ok := p.creds.SessionKey(false)
	if !ok {
		return nil
	}
	p.creds.ClearSessionKey()
	return p.source.For(key).Clear(ctx)
}

func (p *lazyPersister) Revoke(ctx context.Context, at time.Time) error {
	key, ok := p.creds.SessionKey(false)
	if !ok {
		return nil
	}
	return p.source.For(key).Revoke(ctx, at)
}

func (p *lazyPersister) RevokedSince(ctx context.Context, since time.Time) (bool, error) {
	key, ok := p.creds.SessionKey(false)
	if !ok {
		return false, nil
	}
	return p.source.For(key).RevokedSince(ctx, since)
}

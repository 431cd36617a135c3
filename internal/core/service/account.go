package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const (
	profilePath = "/auth/me"
	logoutPath  = "/auth/logout"
)

// GraceForgetter drops the grace entries that would still replay a
// rotation into refreshToken.
type GraceForgetter interface {
	Forget(ctx context.Context, refreshToken string) error
}

// Account binds one browsing context's credentials to the backend so a
// SessionStore can load the profile and end the session.
type Account struct {
	fetcher *Fetcher
	grace   GraceForgetter
	creds   ports.CredentialStore
}

// NewAccount returns an Account. grace may be nil.
func NewAccount(fetcher *Fetcher, grace GraceForgetter, creds ports.CredentialStore) *Account {
	return &Account{fetcher: fetcher, grace: grace, creds: creds}
}

// FetchProfile loads the current user. With no credentials at all it
// returns domain.ErrNoRefreshToken without contacting the backend.
func (a *Account) FetchProfile(ctx context.Context) (*domain.User, error) {
	_, hasAccess := a.creds.AccessToken()
	_, hasRefresh := a.creds.RefreshToken()
	if !hasAccess && !hasRefresh {
		return nil, domain.ErrNoRefreshToken
	}

	var u domain.User
	if err := a.fetcher.Get(ctx, a.creds, profilePath, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("fetch profile: missing user id")
	}
	return &u, nil
}

// Terminate ends the session on the backend. The call goes through the
// Fetcher, so an expired access token is refreshed first; a session that
// can no longer be refreshed is already over and is not an error. Grace
// entries for the final refresh token are dropped either way.
func (a *Account) Terminate(ctx context.Context) error {
	_, hasAccess := a.creds.AccessToken()
	_, hasRefresh := a.creds.RefreshToken()
	if !hasAccess && !hasRefresh {
		return nil
	}

	resp, err := a.fetcher.Send(ctx, a.creds, Request{Method: http.MethodPost, Path: logoutPath})
	if err == nil {
		err = ResponseError(resp)
	}
	if errors.Is(err, domain.ErrSessionExpired) {
		err = nil
	}

	if a.grace != nil {
		if refresh, ok := a.creds.RefreshToken(); ok {
			if ferr := a.grace.Forget(ctx, refresh); ferr != nil && err == nil {
				err = ferr
			}
		}
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

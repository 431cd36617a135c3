package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/metrics"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const defaultAttemptTimeout = 15 * time.Second

// Request is an authenticated backend call. Body must already be encoded.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Header http.Header
}

// Fetcher performs backend calls with the caller's access token, refreshing
// it at most once per call when the backend answers 401.
type Fetcher struct {
	transport ports.Transport
	refresher Refresher
	timeout   time.Duration
	log       zerolog.Logger
}

func NewFetcher(transport ports.Transport, refresher Refresher, timeout time.Duration, log zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &Fetcher{transport: transport, refresher: refresher, timeout: timeout, log: log}
}

// Send issues req and returns the final backend response. A 401 triggers one
// refresh and one resend; if that is not enough the call fails with
// domain.ErrSessionExpired. Any other status is returned to the caller.
// A refresh that fails for a transient reason (backend unreachable, timeout)
// returns that error, not domain.ErrSessionExpired, and leaves credentials
// in place.
func (f *Fetcher) Send(ctx context.Context, creds ports.CredentialStore, req Request) (*ports.UpstreamResponse, error) {
	up := ports.UpstreamRequest{
		Method: req.Method,
		Path:   req.Path,
		Query:  req.Query,
		Body:   req.Body,
		Header: req.Header,
	}
	if up.Method == "" {
		up.Method = http.MethodGet
	}

	resp, err := f.attempt(ctx, creds, up)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	if _, err := f.refresher.Refresh(ctx, creds); err != nil {
		if errors.Is(err, domain.ErrNoRefreshToken) || errors.Is(err, domain.ErrRefreshExpired) {
			metrics.FetchRetriesTotal.WithLabelValues("expired").Inc()
			return nil, fmt.Errorf("%w: %w", domain.ErrSessionExpired, err)
		}
		return nil, err
	}

	resp, err = f.attempt(ctx, creds, up)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		metrics.FetchRetriesTotal.WithLabelValues("expired").Inc()
		f.log.Debug().Str("path", req.Path).Msg("request rejected after refresh")
		return nil, domain.ErrSessionExpired
	}
	metrics.FetchRetriesTotal.WithLabelValues("success").Inc()
	return resp, nil
}

// Do sends req and returns the unwrapped payload of a 2xx response. Other
// statuses become *domain.APIError.
func (f *Fetcher) Do(ctx context.Context, creds ports.CredentialStore, req Request) (json.RawMessage, error) {
	resp, err := f.Send(ctx, creds, req)
	if err != nil {
		return nil, err
	}
	if err := ResponseError(resp); err != nil {
		return nil, err
	}
	return UnwrapEnvelope(resp.Body)
}

// Get fetches path and decodes the unwrapped payload into out.
func (f *Fetcher) Get(ctx context.Context, creds ports.CredentialStore, path string, out any) error {
	payload, err := f.Do(ctx, creds, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("get %s: empty payload", path)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("get %s: decode: %w", path, err)
	}
	return nil
}

// ResponseError returns nil for 2xx responses and a *domain.APIError
// otherwise.
func ResponseError(resp *ports.UpstreamResponse) error {
	if resp.Status >= 200 && resp.Status < 300 {
		return nil
	}
	return apiErrorFrom(resp.Status, resp.Body)
}

func (f *Fetcher) attempt(ctx context.Context, creds ports.CredentialStore, up ports.UpstreamRequest) (*ports.UpstreamResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	up.Bearer, _ = creds.AccessToken()

	resp, err := f.transport.Send(ctx, up)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

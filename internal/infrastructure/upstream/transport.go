// Package upstream sends gateway requests to the REST backend.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/medicaldate/clinic-portal/internal/api/metrics"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const (
	defaultTimeout = 15 * time.Second
	// maxBodyBytes bounds how much of a backend response is buffered.
	maxBodyBytes = 10 << 20
)

// forwardedHeaders are copied from the caller's request onto the backend
// request; everything else is dropped.
var forwardedHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"X-Request-Id",
}

// Transport is a ports.Transport over net/http.
type Transport struct {
	baseURL string
	client  *http.Client
	maxBody int64
}

var _ ports.Transport = (*Transport)(nil)

// New returns a Transport rooted at baseURL. A nil client gets a default one
// with the given timeout that hands redirects back to the caller.
func New(baseURL string, client *http.Client, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Transport{baseURL: baseURL, client: client, maxBody: maxBodyBytes}
}

func (t *Transport) Send(ctx context.Context, req ports.UpstreamRequest) (*ports.UpstreamResponse, error) {
	url := t.baseURL + req.Path
	if req.Query != "" {
		url += "?" + req.Query
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for _, h := range forwardedHeaders {
		if v := req.Header.Get(h); v != "" {
			httpReq.Header.Set(h, v)
		}
	}
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	metrics.UpstreamRequestDuration.WithLabelValues(statusClass(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}
	if int64(len(raw)) > t.maxBody {
		return nil, fmt.Errorf("%w: %s %s: response body exceeds %d bytes", domain.ErrUpstreamUnavailable, req.Method, req.Path, t.maxBody)
	}

	return &ports.UpstreamResponse{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   raw,
	}, nil
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

// seqProfiles answers with results in order; the last one repeats.
type seqProfiles struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *seqProfiles) FetchProfile(context.Context) (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	if p.results[i] != nil {
		return nil, p.results[i]
	}
	return doctorUser(), nil
}

type stubWatcher struct {
	profiles *seqProfiles
}

func (w *stubWatcher) OpenWatch(echo.Context) *service.SessionStore {
	return service.NewSessionStore(service.SessionDeps{Profiles: w.profiles}, zerolog.Nop())
}

func TestStreamHandler_StreamsUntilAccessRejected(t *testing.T) {
	opener := &testOpener{profiles: &stubProfiles{user: doctorUser()}}
	watcher := &stubWatcher{profiles: &seqProfiles{results: []error{nil, errors.New("401")}}}
	h := NewStreamHandler(opener, watcher, 5*time.Millisecond, zerolog.Nop())

	c, rec := newTestContext(http.MethodGet, "/api/auth/session/stream", "", tokenCookies("acc", "ref")...)
	done := make(chan error, 1)
	go func() { done <- h.Stream(c) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not end after the session was lost")
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if got := strings.Count(body, "event: session\n"); got != 2 {
		t.Fatalf("expected the initial and one watched session event, got %d in %q", got, body)
	}
	if !strings.HasSuffix(body, "event: refresh\ndata: {\"success\":false,\"error\":\"session expired\"}\n\n") {
		t.Fatalf("expected a closing refresh event, got %q", body)
	}
}

func TestStreamHandler_AnonymousEndsImmediately(t *testing.T) {
	opener := &testOpener{profiles: &stubProfiles{err: domain.ErrNoRefreshToken}}
	watcher := &stubWatcher{profiles: &seqProfiles{results: []error{nil}}}
	h := NewStreamHandler(opener, watcher, time.Millisecond, zerolog.Nop())

	c, rec := newTestContext(http.MethodGet, "/api/auth/session/stream", "")
	if err := h.Stream(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.Count(rec.Body.String(), "event: ") != 1 || !strings.Contains(rec.Body.String(), `"isAuthenticated":false`) {
		t.Fatalf("expected a single anonymous event, got %q", rec.Body.String())
	}
	if watcher.profiles.calls != 0 {
		t.Fatalf("expected no watch for an anonymous session")
	}
}

func TestStreamHandler_StopsOnDisconnect(t *testing.T) {
	opener := &testOpener{profiles: &stubProfiles{user: doctorUser()}}
	watcher := &stubWatcher{profiles: &seqProfiles{results: []error{nil}}}
	h := NewStreamHandler(opener, watcher, time.Hour, zerolog.Nop())

	c, _ := newTestContext(http.MethodGet, "/api/auth/session/stream", "", tokenCookies("acc", "ref")...)
	ctx, cancel := context.WithCancel(context.Background())
	c.SetRequest(c.Request().WithContext(ctx))

	done := make(chan error, 1)
	go func() { done <- h.Stream(c) }()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream kept running after the client went away")
	}
}

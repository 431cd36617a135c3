package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

const defaultWatchInterval = time.Minute

// SessionWatcher opens a store that re-verifies a session after the response
// headers were sent.
type SessionWatcher interface {
	OpenWatch(c echo.Context) *service.SessionStore
}

// StreamHandler pushes session state to the browser as server-sent events.
type StreamHandler struct {
	sessions middleware.SessionOpener
	watcher  SessionWatcher
	interval time.Duration
	log      zerolog.Logger
}

func NewStreamHandler(sessions middleware.SessionOpener, watcher SessionWatcher, interval time.Duration, log zerolog.Logger) *StreamHandler {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &StreamHandler{sessions: sessions, watcher: watcher, interval: interval, log: log}
}

// Stream verifies the session, sends it, then re-verifies it every interval
// until the client disconnects or the session ends.
//
// Events:
//   - session: the current session
//   - refresh: the access token is no longer accepted; the browser should
//     call /api/auth/refresh and reconnect
//
// @Summary      Session event stream
// @Tags         auth
// @Produce      text/event-stream
// @Success      200  {object}  sessionResponse
// @Router       /api/auth/session/stream [get]
func (h *StreamHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	sc := h.sessions.Open(c)
	if err := sc.Store.Restore(ctx); err != nil {
		h.log.Debug().Err(err).Msg("restore before stream failed")
	}

	// Runs before the headers go out so a refresh can still set cookies.
	snap := sc.Store.CheckAuth(ctx)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "session", toSessionResponse(snap)); err != nil || !snap.IsAuthenticated {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	updates := make(chan domain.Session)
	stop := h.watcher.OpenWatch(c).Watch(watchCtx, h.interval, func(s domain.Session) {
		select {
		case updates <- s:
		case <-watchCtx.Done():
		}
	})
	defer stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if !snap.IsAuthenticated {
				if _, ok := sc.Credentials.RefreshToken(); ok {
					_ = writeEvent(w, "refresh", refreshResponse{Error: domain.ErrSessionExpired.Error()})
					return nil
				}
				_ = writeEvent(w, "session", toSessionResponse(snap))
				return nil
			}
			if err := writeEvent(w, "session", toSessionResponse(snap)); err != nil {
				h.log.Debug().Err(err).Msg("session stream closed")
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, raw); err != nil {
		return err
	}
	w.Flush()
	return nil
}

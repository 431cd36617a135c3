package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

const defaultMaxProxyBody = 10 << 20

// passedHeaders are copied from a non-error backend response to the browser.
var passedHeaders = []string{
	"Location",
	"Cache-Control",
	"Content-Disposition",
	"ETag",
	"Last-Modified",
}

// ProxyHandler forwards browser API calls to the clinic backend with the
// session's credentials, refreshing them on 401.
type ProxyHandler struct {
	sessions middleware.SessionOpener
	fetcher  *service.Fetcher
	audit    auditor
	maxBody  int64
	log      zerolog.Logger
}

func NewProxyHandler(sessions middleware.SessionOpener, fetcher *service.Fetcher, recorder ports.AuditRecorder, log zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{
		sessions: sessions,
		fetcher:  fetcher,
		audit:    auditor{recorder: recorder},
		maxBody:  defaultMaxProxyBody,
		log:      log,
	}
}

// Forward proxies any method under /api/v1 to the backend. Request bodies
// above the limit are refused with 413.
//
// @Summary      Authenticated backend proxy
// @Tags         proxy
// @Accept       json
// @Produce      json
// @Param        path  path      string  true  "Backend path"
// @Success      200   {object}  map[string]any
// @Failure      401   {object}  map[string]string
// @Failure      413   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/{path} [get]
func (h *ProxyHandler) Forward(c echo.Context) error {
	r := c.Request()
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if int64(len(body)) > h.maxBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	ctx := r.Context()
	sc := h.sessions.Open(c)
	started := time.Now()
	before, _ := sc.Credentials.RefreshToken()

	resp, err := h.fetcher.Send(ctx, sc.Credentials, service.Request{
		Method: r.Method,
		Path:   "/" + c.Param("*"),
		Query:  r.URL.RawQuery,
		Body:   body,
		Header: r.Header,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			if err := sc.Store.Restore(ctx); err != nil {
				h.log.Debug().Err(err).Msg("restore before teardown failed")
			}
			id, email := userOf(sc.Store.Snapshot())
			sc.Credentials.Clear()
			sc.Store.ClearAuth(ctx)
			h.audit.record(c, domain.AuthEvent{Type: domain.EventSessionExpired, UserID: id, Email: email, Reason: err.Error()})
		}
		return err
	}

	// Tokens rotated here must not outlive a logout made meanwhile.
	if after, _ := sc.Credentials.RefreshToken(); after != before && sc.Store.DropIfRevoked(ctx, started) {
		h.log.Debug().Str("path", r.URL.Path).Msg("session logged out during proxied call, dropped rotated tokens")
	}

	if resp.Status >= http.StatusBadRequest {
		return service.ResponseError(resp)
	}
	for _, name := range passedHeaders {
		if v := resp.Header.Get(name); v != "" {
			c.Response().Header().Set(name, v)
		}
	}
	if len(resp.Body) == 0 {
		return c.NoContent(resp.Status)
	}

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(resp.Status, contentType, resp.Body)
}

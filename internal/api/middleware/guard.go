package middleware

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/metrics"
	"github.com/medicaldate/clinic-portal/internal/api/session"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

const (
	// SessionKey holds the verified domain.Session of a guarded request.
	SessionKey = "session"
	// ClaimsKey holds the *ports.AccessClaims of a bearer-authenticated request.
	ClaimsKey = "claims"

	defaultCheckTimeout = 15 * time.Second
)

// SessionOpener returns the session bound to a request.
type SessionOpener interface {
	Open(c echo.Context) *session.Context
}

// Guard verifies the session before a protected view renders. Unauthenticated
// visitors are sent to the login path with the requested path in ?next=;
// authenticated users lacking a role or permission are sent to the fallback
// path. A check that does not finish within timeout answers 503.
func Guard(opener SessionOpener, req service.GuardRequirements, timeout time.Duration, log zerolog.Logger) echo.MiddlewareFunc {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sc := opener.Open(c)

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			snap := sc.Store.CheckAuth(ctx)
			cancel()

			decision := service.EvaluateGuard(snap, req)
			switch decision.State {
			case service.GuardAuthorized:
				metrics.GuardDecisionsTotal.WithLabelValues("authorized").Inc()
				c.Set(SessionKey, snap)
				return next(c)

			case service.GuardRedirecting:
				target := decision.RedirectTo
				if decision.Reason == "unauthenticated" {
					metrics.GuardDecisionsTotal.WithLabelValues("login").Inc()
					target = withNext(target, c.Request().URL.RequestURI())
				} else {
					metrics.GuardDecisionsTotal.WithLabelValues("fallback").Inc()
				}
				log.Debug().
					Str("path", c.Request().URL.Path).
					Str("reason", decision.Reason).
					Str("redirect", target).
					Msg("guard redirect")
				return c.Redirect(http.StatusFound, target)
			}

			metrics.GuardDecisionsTotal.WithLabelValues("checking").Inc()
			c.Response().Header().Set("Retry-After", "1")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "session check did not complete")
		}
	}
}

func withNext(loginPath, requested string) string {
	if requested == "" || requested == "/" {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(requested)
}

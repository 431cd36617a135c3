package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

// ctxSession returns the session verified by the Guard middleware. Its
// absence means the route was registered without a guard.
func ctxSession(c echo.Context) (domain.Session, error) {
	s, ok := c.Get(middleware.SessionKey).(domain.Session)
	if !ok || !s.IsAuthenticated {
		return domain.Session{}, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return s, nil
}

// ctxClaims returns the access token claims injected by the Auth middleware.
func ctxClaims(c echo.Context) (ports.AccessClaims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(*ports.AccessClaims)
	if !ok || claims == nil || claims.UserID == "" {
		return ports.AccessClaims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return *claims, nil
}

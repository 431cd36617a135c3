package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
	"github.com/medicaldate/clinic-portal/internal/core/service"
)

type AuthHandler struct {
	sessions  middleware.SessionOpener
	backend   ports.AuthBackend
	refresher service.Refresher
	audit     auditor
	log       zerolog.Logger
}

func NewAuthHandler(sessions middleware.SessionOpener, backend ports.AuthBackend, refresher service.Refresher, recorder ports.AuditRecorder, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		backend:   backend,
		refresher: refresher,
		audit:     auditor{recorder: recorder},
		log:       log,
	}
}

// Login exchanges credentials for a token pair, stores it in cookies and
// returns the verified session.
//
// @Summary      Login for a role
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        role  path      string        true  "Role to sign in as"  Enums(patient, doctor, secretary, admin, super_admin)
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/auth/login/{role} [post]
func (h *AuthHandler) Login(c echo.Context) error {
	role, err := domain.ParseRole(c.Param("role"))
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	pair, err := h.backend.Login(ctx, role, req.Email, req.Password)
	if err != nil {
		h.audit.record(c, domain.AuthEvent{
			Type:   domain.EventLoginFailed,
			Email:  req.Email,
			Role:   role,
			Reason: err.Error(),
		})
		return err
	}

	sc := h.sessions.Open(c)
	sc.Credentials.SetTokens(pair)
	snap := sc.Store.CheckAuth(ctx)
	if !snap.IsAuthenticated {
		sc.Credentials.Clear()
		return echo.NewHTTPError(http.StatusBadGateway, "profile unavailable after login")
	}

	id, email := userOf(snap)
	h.audit.record(c, domain.AuthEvent{Type: domain.EventLogin, UserID: id, Email: email, Role: role})
	return c.JSON(http.StatusOK, toSessionResponse(snap))
}

// Refresh rotates the token pair held in cookies.
//
// @Summary      Refresh tokens
// @Tags         auth
// @Produce      json
// @Success      200  {object}  refreshResponse
// @Failure      401  {object}  refreshResponse
// @Failure      502  {object}  refreshResponse
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	sc := h.sessions.Open(c)
	if err := sc.Store.Restore(ctx); err != nil {
		h.log.Debug().Err(err).Msg("restore before refresh failed")
	}
	id, email := userOf(sc.Store.Snapshot())

	started := time.Now()
	_, err := h.refresher.Refresh(ctx, sc.Credentials)
	switch {
	case err == nil && sc.Store.DropIfRevoked(ctx, started):
		return c.JSON(http.StatusUnauthorized, refreshResponse{Error: domain.ErrSessionExpired.Error()})

	case err == nil:
		h.audit.record(c, domain.AuthEvent{Type: domain.EventRefresh, UserID: id, Email: email})
		return c.JSON(http.StatusOK, refreshResponse{Success: true})

	case errors.Is(err, domain.ErrNoRefreshToken):
		return c.JSON(http.StatusUnauthorized, refreshResponse{Error: err.Error()})

	case errors.Is(err, domain.ErrRefreshExpired):
		sc.Store.ClearAuth(ctx)
		h.audit.record(c, domain.AuthEvent{Type: domain.EventRefreshFailed, UserID: id, Email: email, Reason: err.Error()})
		return c.JSON(http.StatusUnauthorized, refreshResponse{Error: err.Error()})
	}

	h.log.Warn().Err(err).Msg("refresh failed")
	h.audit.record(c, domain.AuthEvent{Type: domain.EventRefreshFailed, UserID: id, Email: email, Reason: err.Error()})
	return c.JSON(http.StatusBadGateway, refreshResponse{Error: "refresh unavailable"})
}

// Logout ends the session. Local state is cleared even when the backend
// call fails.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  logoutResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	sc := h.sessions.Open(c)
	if err := sc.Store.Restore(ctx); err != nil {
		h.log.Debug().Err(err).Msg("restore before logout failed")
	}
	id, email := userOf(sc.Store.Snapshot())

	sc.Store.Logout(ctx)

	h.audit.record(c, domain.AuthEvent{Type: domain.EventLogout, UserID: id, Email: email})
	return c.JSON(http.StatusOK, logoutResponse{Success: true})
}

// Me verifies the session with the backend and returns it.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	sc := h.sessions.Open(c)
	_, hadCredentials := sc.Credentials.RefreshToken()
	if err := sc.Store.Restore(ctx); err != nil {
		h.log.Debug().Err(err).Msg("restore before check failed")
	}
	id, email := userOf(sc.Store.Snapshot())

	snap := sc.Store.CheckAuth(ctx)
	if !snap.IsAuthenticated && hadCredentials && ctx.Err() == nil {
		h.audit.record(c, domain.AuthEvent{Type: domain.EventSessionExpired, UserID: id, Email: email})
	}
	return c.JSON(http.StatusOK, toSessionResponse(snap))
}

// Session returns the persisted session without contacting the backend.
// The result is unverified.
//
// @Summary      Persisted session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	sc := h.sessions.Open(c)
	if err := sc.Store.Restore(c.Request().Context()); err != nil {
		h.log.Warn().Err(err).Msg("failed to restore session")
	}
	return c.JSON(http.StatusOK, toSessionResponse(sc.Store.Snapshot()))
}

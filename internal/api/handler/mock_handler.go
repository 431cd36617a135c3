package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicaldate/clinic-portal/internal/api/middleware"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

// MockHandler serves the clinic backend's auth endpoints from the local
// mock service, using the backend's {statusCode, data} envelope.
type MockHandler struct {
	svc ports.MockAuthService
}

func NewMockHandler(svc ports.MockAuthService) *MockHandler {
	return &MockHandler{svc: svc}
}

// Login authenticates against the mock user store.
//
// @Summary      Mock backend login
// @Tags         mock
// @Accept       json
// @Produce      json
// @Param        role  path      string        true  "Role"
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  envelope
// @Failure      401   {object}  envelope
// @Router       /mock-api/auth/login/{role} [post]
func (h *MockHandler) Login(c echo.Context) error {
	role, err := domain.ParseRole(c.Param("role"))
	if err != nil {
		return mockError(c, err)
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return mockFail(c, http.StatusBadRequest, "invalid payload")
	}

	pair, err := h.svc.Login(c.Request().Context(), role, req.Email, req.Password)
	if err != nil {
		return mockError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{StatusCode: http.StatusOK, Data: pair})
}

// Refresh rotates the refresh token passed as the bearer.
//
// @Summary      Mock backend refresh
// @Tags         mock
// @Produce      json
// @Success      200  {object}  envelope
// @Failure      401  {object}  envelope
// @Router       /mock-api/auth/refresh [post]
func (h *MockHandler) Refresh(c echo.Context) error {
	token, ok := middleware.BearerToken(c)
	if !ok {
		return mockFail(c, http.StatusUnauthorized, "missing refresh token")
	}

	pair, err := h.svc.Refresh(c.Request().Context(), token)
	if err != nil {
		return mockError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{StatusCode: http.StatusOK, Data: pair})
}

// Logout revokes the refresh tokens of the caller's session.
//
// @Summary      Mock backend logout
// @Tags         mock
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  envelope
// @Router       /mock-api/auth/logout [post]
func (h *MockHandler) Logout(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.Request().Context(), claims); err != nil {
		return mockError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{StatusCode: http.StatusOK, Data: logoutResponse{Success: true}})
}

// Me returns the caller's profile.
//
// @Summary      Mock backend profile
// @Tags         mock
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  envelope
// @Failure      401  {object}  envelope
// @Router       /mock-api/auth/me [get]
func (h *MockHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	user, err := h.svc.Me(c.Request().Context(), claims)
	if err != nil {
		return mockError(c, err)
	}
	return c.JSON(http.StatusOK, envelope{StatusCode: http.StatusOK, Data: user})
}

func mockError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRole):
		return mockFail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrRefreshTokenInvalid),
		errors.Is(err, domain.ErrUserNotFound):
		return mockFail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrRoleNotGranted),
		errors.Is(err, domain.ErrUserInactive):
		return mockFail(c, http.StatusForbidden, err.Error())
	}
	return err
}

func mockFail(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// DashboardHandler renders the view models of the portal pages. Protected
// views rely on the Guard middleware having verified the session.
type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// View returns a handler for the protected view name.
func (h *DashboardHandler) View(name, title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := ctxSession(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, dashboardResponse{
			View:    name,
			Title:   title,
			Session: toSessionResponse(s),
		})
	}
}

// Login describes the public login page. next is echoed back only when it
// is a local path.
//
// @Summary      Login page
// @Tags         views
// @Produce      json
// @Param        next  query     string  false  "Path to return to after login"
// @Success      200   {object}  loginPageResponse
// @Router       /login [get]
func (h *DashboardHandler) Login(c echo.Context) error {
	return c.JSON(http.StatusOK, loginPageResponse{
		View:  "login",
		Roles: domain.Roles,
		Next:  localPath(c.QueryParam("next")),
	})
}

func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	return p
}

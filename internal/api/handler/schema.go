package handler

import (
	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse is the browser view of a session. Permissions and
// navigation are derived from the roles on every response.
type sessionResponse struct {
	User            *domain.User        `json:"user"`
	IsAuthenticated bool                `json:"isAuthenticated"`
	IsLoading       bool                `json:"isLoading"`
	Verified        bool                `json:"verified"`
	Permissions     []domain.Permission `json:"permissions"`
	Navigation      []domain.NavItem    `json:"navigation"`
	HomePath        string              `json:"homePath,omitempty"`
}

func toSessionResponse(s domain.Session) sessionResponse {
	resp := sessionResponse{
		User:            s.User,
		IsAuthenticated: s.IsAuthenticated,
		IsLoading:       s.IsLoading,
		Verified:        s.Verified,
		Permissions:     s.Permissions.Sorted(),
		Navigation:      domain.NavigationFor(s.Permissions),
	}
	if s.IsAuthenticated {
		resp.HomePath = domain.HomePathFor(s.User)
	}
	return resp
}

type refreshResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type loginPageResponse struct {
	View  string        `json:"view"`
	Roles []domain.Role `json:"roles"`
	Next  string        `json:"next,omitempty"`
}

type dashboardResponse struct {
	View    string          `json:"view"`
	Title   string          `json:"title"`
	Session sessionResponse `json:"session"`
}

// envelope is the response shape of the clinic backend.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

package service

import "github.com/medicaldate/clinic-portal/internal/core/domain"

const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/dashboard"
)

// GuardState is the outcome of evaluating a protected view.
type GuardState int

const (
	GuardChecking GuardState = iota
	GuardAuthorized
	GuardRedirecting
)

func (s GuardState) String() string {
	switch s {
	case GuardChecking:
		return "checking"
	case GuardAuthorized:
		return "authorized"
	case GuardRedirecting:
		return "redirecting"
	}
	return "unknown"
}

// GuardRequirements describe who may see a view. Roles match if the user
// holds any of them; Permissions match only if the user holds all of them.
// Empty lists impose no constraint.
type GuardRequirements struct {
	Roles       []domain.Role
	Permissions []domain.Permission
	LoginPath   string
	HomePath    string
}

// GuardDecision says whether to render, wait or redirect.
type GuardDecision struct {
	State      GuardState
	RedirectTo string
	// Reason is "unauthenticated", "role" or "permission" when redirecting.
	Reason string
}

// EvaluateGuard decides what to do with a protected view given the session.
func EvaluateGuard(s domain.Session, req GuardRequirements) GuardDecision {
	if s.IsLoading || !s.Verified {
		return GuardDecision{State: GuardChecking}
	}

	login := req.LoginPath
	if login == "" {
		login = DefaultLoginPath
	}
	home := req.HomePath
	if home == "" {
		home = DefaultHomePath
	}

	if !s.IsAuthenticated || s.User == nil {
		return GuardDecision{State: GuardRedirecting, RedirectTo: login, Reason: "unauthenticated"}
	}

	if len(req.Roles) > 0 {
		allowed := false
		for _, r := range req.Roles {
			if s.HasRole(r) {
				allowed = true
				break
			}
		}
		if !allowed {
			return GuardDecision{State: GuardRedirecting, RedirectTo: home, Reason: "role"}
		}
	}

	if !s.Permissions.HasAll(req.Permissions...) {
		return GuardDecision{State: GuardRedirecting, RedirectTo: home, Reason: "permission"}
	}

	return GuardDecision{State: GuardAuthorized}
}

package service

import (
	"testing"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

func sessionFor(roles ...domain.Role) domain.Session {
	u := &domain.User{ID: "u1", Roles: roles}
	return domain.Session{
		User:            u,
		IsAuthenticated: true,
		Verified:        true,
		Permissions:     domain.PermissionsFor(roles...),
	}
}

func TestEvaluateGuard(t *testing.T) {
	anonymous := domain.Session{Verified: true, Permissions: domain.PermissionSet{}}
	loading := sessionFor(domain.RoleAdmin)
	loading.IsLoading = true
	unverified := sessionFor(domain.RoleAdmin)
	unverified.Verified = false

	billing := GuardRequirements{
		Roles:       []domain.Role{domain.RoleAdmin, domain.RoleSecretary},
		Permissions: []domain.Permission{domain.PermBillingWrite},
	}

	cases := []struct {
		name     string
		session  domain.Session
		req      GuardRequirements
		state    GuardState
		redirect string
		reason   string
	}{
		{"loading", loading, GuardRequirements{}, GuardChecking, "", ""},
		{"unverified", unverified, GuardRequirements{}, GuardChecking, "", ""},
		{"anonymous", anonymous, GuardRequirements{}, GuardRedirecting, DefaultLoginPath, "unauthenticated"},
		{"custom login path", anonymous, GuardRequirements{LoginPath: "/signin"}, GuardRedirecting, "/signin", "unauthenticated"},
		{"no requirements", sessionFor(domain.RolePatient), GuardRequirements{}, GuardAuthorized, "", ""},
		{"role match", sessionFor(domain.RoleDoctor), GuardRequirements{Roles: []domain.Role{domain.RoleDoctor}}, GuardAuthorized, "", ""},
		{"role mismatch", sessionFor(domain.RolePatient), GuardRequirements{Roles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}}, GuardRedirecting, DefaultHomePath, "role"},
		{"custom fallback", sessionFor(domain.RolePatient), GuardRequirements{Roles: []domain.Role{domain.RoleAdmin}, HomePath: "/dashboard/patient"}, GuardRedirecting, "/dashboard/patient", "role"},
		{"permission match", sessionFor(domain.RoleDoctor), GuardRequirements{Permissions: []domain.Permission{domain.PermAnalyticsRead}}, GuardAuthorized, "", ""},
		{"permission mismatch", sessionFor(domain.RolePatient), GuardRequirements{Permissions: []domain.Permission{domain.PermAnalyticsRead}}, GuardRedirecting, DefaultHomePath, "permission"},
		{"role and permission", sessionFor(domain.RoleSecretary), billing, GuardAuthorized, "", ""},
		{"role without permission", sessionFor(domain.RoleDoctor, domain.RoleSecretary), GuardRequirements{Roles: []domain.Role{domain.RoleDoctor}, Permissions: []domain.Permission{domain.PermSettingsManage}}, GuardRedirecting, DefaultHomePath, "permission"},
		{"permission without role", sessionFor(domain.RoleSuperAdmin), GuardRequirements{Roles: []domain.Role{domain.RoleSecretary}, Permissions: []domain.Permission{domain.PermBillingWrite}}, GuardRedirecting, DefaultHomePath, "role"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateGuard(tc.session, tc.req)
			if got.State != tc.state {
				t.Fatalf("expected state %s, got %s", tc.state, got.State)
			}
			if got.RedirectTo != tc.redirect {
				t.Fatalf("expected redirect %q, got %q", tc.redirect, got.RedirectTo)
			}
			if got.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, got.Reason)
			}
		})
	}
}

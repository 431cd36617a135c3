package domain

import (
	"sort"
	"strings"
)

// Role is a coarse-grained identity category.
type Role string

const (
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
	RoleSecretary  Role = "secretary"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RolePatient, RoleDoctor, RoleSecretary, RoleAdmin, RoleSuperAdmin}

// ParseRole converts a raw string into a known Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rolePermissions[r]; !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Permission is a fine-grained capability string of the form resource:action.
type Permission string

const (
	PermAppointmentsRead    Permission = "appointments:read"
	PermAppointmentsWrite   Permission = "appointments:write"
	PermPatientsRead        Permission = "patients:read"
	PermPatientsWrite       Permission = "patients:write"
	PermDoctorsRead         Permission = "doctors:read"
	PermDoctorsWrite        Permission = "doctors:write"
	PermClinicsRead         Permission = "clinics:read"
	PermClinicsWrite        Permission = "clinics:write"
	PermPrescriptionsRead   Permission = "prescriptions:read"
	PermPrescriptionsWrite  Permission = "prescriptions:write"
	PermMedicalRecordsRead  Permission = "medical_records:read"
	PermMedicalRecordsWrite Permission = "medical_records:write"
	PermBillingRead         Permission = "billing:read"
	PermBillingWrite        Permission = "billing:write"
	PermAnalyticsRead       Permission = "analytics:read"
	PermUsersManage         Permission = "users:manage"
	PermSettingsManage      Permission = "settings:manage"
)

// rolePermissions is the static role -> permission table. Permissions are
// only ever derived from it.
var rolePermissions = map[Role][]Permission{
	RolePatient: {
		PermAppointmentsRead,
		PermAppointmentsWrite,
		PermDoctorsRead,
		PermClinicsRead,
		PermPrescriptionsRead,
		PermMedicalRecordsRead,
		PermBillingRead,
	},
	RoleDoctor: {
		PermAppointmentsRead,
		PermAppointmentsWrite,
		PermPatientsRead,
		PermPatientsWrite,
		PermClinicsRead,
		PermPrescriptionsRead,
		PermPrescriptionsWrite,
		PermMedicalRecordsRead,
		PermMedicalRecordsWrite,
		PermAnalyticsRead,
	},
	RoleSecretary: {
		PermAppointmentsRead,
		PermAppointmentsWrite,
		PermPatientsRead,
		PermPatientsWrite,
		PermDoctorsRead,
		PermClinicsRead,
		PermBillingRead,
		PermBillingWrite,
	},
	RoleAdmin: {
		PermAppointmentsRead,
		PermAppointmentsWrite,
		PermPatientsRead,
		PermPatientsWrite,
		PermDoctorsRead,
		PermDoctorsWrite,
		PermClinicsRead,
		PermClinicsWrite,
		PermPrescriptionsRead,
		PermMedicalRecordsRead,
		PermBillingRead,
		PermBillingWrite,
		PermAnalyticsRead,
		PermUsersManage,
	},
	RoleSuperAdmin: {
		PermAppointmentsRead,
		PermAppointmentsWrite,
		PermPatientsRead,
		PermPatientsWrite,
		PermDoctorsRead,
		PermDoctorsWrite,
		PermClinicsRead,
		PermClinicsWrite,
		PermPrescriptionsRead,
		PermPrescriptionsWrite,
		PermMedicalRecordsRead,
		PermMedicalRecordsWrite,
		PermBillingRead,
		PermBillingWrite,
		PermAnalyticsRead,
		PermUsersManage,
		PermSettingsManage,
	},
}

// RolePermissions returns a copy of the table entry for r.
func RolePermissions(r Role) []Permission {
	perms := rolePermissions[r]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// PermissionsFor returns the union of the table entries for roles.
// Unknown roles contribute nothing.
func PermissionsFor(roles ...Role) PermissionSet {
	set := make(PermissionSet)
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether every permission in ps is in the set.
func (s PermissionSet) HasAll(ps ...Permission) bool {
	for _, p := range ps {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether both sets hold exactly the same permissions.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

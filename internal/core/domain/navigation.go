package domain

// NavItem is one dashboard sidebar entry.
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var navigation = []struct {
	item NavItem
	perm Permission
}{
	{NavItem{"Appointments", "/dashboard/appointments"}, PermAppointmentsRead},
	{NavItem{"Patients", "/dashboard/patients"}, PermPatientsRead},
	{NavItem{"Doctors", "/dashboard/doctors"}, PermDoctorsRead},
	{NavItem{"Clinics", "/dashboard/clinics"}, PermClinicsRead},
	{NavItem{"Prescriptions", "/dashboard/prescriptions"}, PermPrescriptionsRead},
	{NavItem{"Medical records", "/dashboard/medical-records"}, PermMedicalRecordsRead},
	{NavItem{"Billing", "/dashboard/billing"}, PermBillingRead},
	{NavItem{"Analytics", "/dashboard/analytics"}, PermAnalyticsRead},
	{NavItem{"Users", "/dashboard/users"}, PermUsersManage},
	{NavItem{"Settings", "/dashboard/settings"}, PermSettingsManage},
}

// NavigationFor returns the sidebar entries the permission set unlocks.
func NavigationFor(perms PermissionSet) []NavItem {
	out := make([]NavItem, 0, len(navigation))
	for _, n := range navigation {
		if perms.Has(n.perm) {
			out = append(out, n.item)
		}
	}
	return out
}

// HomePathFor returns the role-specific landing view, preferring the most
// privileged role the user holds.
func HomePathFor(u *User) string {
	switch {
	case u.HasRole(RoleSuperAdmin), u.HasRole(RoleAdmin):
		return "/dashboard/admin"
	case u.HasRole(RoleDoctor):
		return "/dashboard/doctor"
	case u.HasRole(RoleSecretary):
		return "/dashboard/secretary"
	case u.HasRole(RolePatient):
		return "/dashboard/patient"
	}
	return "/dashboard"
}

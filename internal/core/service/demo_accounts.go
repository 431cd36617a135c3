package service

import "github.com/medicaldate/clinic-portal/internal/core/domain"

// DemoPassword is shared by every demo account.
const DemoPassword = "Demo1234!"

// DemoAccounts returns one active account per role, plus a doctor who also
// works the front desk.
func DemoAccounts() []SeedAccount {
	mk := func(id, email, first, last string, roles ...domain.Role) SeedAccount {
		return SeedAccount{
			User: domain.User{
				ID:              id,
				Email:           email,
				FirstName:       first,
				LastName:        last,
				IsActive:        true,
				IsEmailVerified: true,
				Roles:           roles,
			},
			Password: DemoPassword,
		}
	}

	doctor := mk("usr_doctor", "doctor@medicaldate.com", "Gregory", "House", domain.RoleDoctor)
	doctor.User.Doctor = &domain.DoctorProfile{
		ID:              "doc_001",
		Specialty:       "Internal Medicine",
		LicenseNumber:   "MD-448812",
		ClinicIDs:       []string{"cln_001"},
		YearsExperience: 12,
	}

	patient := mk("usr_patient", "patient@medicaldate.com", "Ana", "García", domain.RolePatient)
	patient.User.Patient = &domain.PatientProfile{
		ID:        "pat_001",
		Gender:    "female",
		BloodType: "O+",
		Allergies: []string{"penicillin"},
	}

	return []SeedAccount{
		mk("usr_super_admin", "superadmin@medicaldate.com", "Sara", "Ruiz", domain.RoleSuperAdmin),
		mk("usr_admin", "admin@medicaldate.com", "Luis", "Ortega", domain.RoleAdmin),
		doctor,
		mk("usr_secretary", "secretary@medicaldate.com", "Marta", "López", domain.RoleSecretary),
		patient,
		mk("usr_doctor_desk", "frontdesk@medicaldate.com", "Iván", "Torres", domain.RoleDoctor, domain.RoleSecretary),
	}
}

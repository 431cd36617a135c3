package domain

import "time"

// DoctorProfile carries the doctor-specific part of a user.
type DoctorProfile struct {
	ID              string   `json:"id"`
	Specialty       string   `json:"specialty,omitempty"`
	LicenseNumber   string   `json:"licenseNumber,omitempty"`
	ClinicIDs       []string `json:"clinicIds,omitempty"`
	YearsExperience int      `json:"yearsExperience,omitempty"`
}

// PatientProfile carries the patient-specific part of a user.
type PatientProfile struct {
	ID          string     `json:"id"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	BloodType   string     `json:"bloodType,omitempty"`
	Allergies   []string   `json:"allergies,omitempty"`
}

// User is the authenticated identity as returned by the backend.
type User struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	FirstName       string          `json:"firstName"`
	LastName        string          `json:"lastName"`
	Phone           string          `json:"phone,omitempty"`
	IsActive        bool            `json:"isActive"`
	IsEmailVerified bool            `json:"isEmailVerified"`
	Roles           []Role          `json:"roles"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Doctor          *DoctorProfile  `json:"doctor,omitempty"`
	Patient         *PatientProfile `json:"patient,omitempty"`
}

// HasRole reports whether r is one of the user's roles.
func (u *User) HasRole(r Role) bool {
	if u == nil {
		return false
	}
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Clone returns a deep copy so callers never share slices with a store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]Role(nil), u.Roles...)
	if u.Doctor != nil {
		d := *u.Doctor
		d.ClinicIDs = append([]string(nil), u.Doctor.ClinicIDs...)
		c.Doctor = &d
	}
	if u.Patient != nil {
		p := *u.Patient
		p.Allergies = append([]string(nil), u.Patient.Allergies...)
		c.Patient = &p
	}
	return &c
}

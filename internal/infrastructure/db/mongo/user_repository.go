package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

const collectionUsers = "mock_users"

// UserRepository stores mock-backend accounts.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type userDoc struct {
	ID              string      `bson:"_id"`
	Email           string      `bson:"email"`
	PasswordHash    string      `bson:"password_hash"`
	FirstName       string      `bson:"first_name"`
	LastName        string      `bson:"last_name"`
	Phone           string      `bson:"phone,omitempty"`
	IsActive        bool        `bson:"is_active"`
	IsEmailVerified bool        `bson:"is_email_verified"`
	Roles           []string    `bson:"roles"`
	Doctor          *doctorDoc  `bson:"doctor,omitempty"`
	Patient         *patientDoc `bson:"patient,omitempty"`
	CreatedAt       int64       `bson:"created_at"`
	UpdatedAt       int64       `bson:"updated_at"`
}

type doctorDoc struct {
	ID              string   `bson:"id"`
	Specialty       string   `bson:"specialty,omitempty"`
	LicenseNumber   string   `bson:"license_number,omitempty"`
	ClinicIDs       []string `bson:"clinic_ids,omitempty"`
	YearsExperience int      `bson:"years_experience,omitempty"`
}

type patientDoc struct {
	ID          string     `bson:"id"`
	DateOfBirth *time.Time `bson:"date_of_birth,omitempty"`
	Gender      string     `bson:"gender,omitempty"`
	BloodType   string     `bson:"blood_type,omitempty"`
	Allergies   []string   `bson:"allergies,omitempty"`
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*ports.UserRecord, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*ports.UserRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// Upsert replaces the account with the same email, keeping its id.
func (r *UserRepository) Upsert(ctx context.Context, rec ports.UserRecord) (*ports.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if existing, err := r.FindByEmail(ctx, rec.User.Email); err == nil {
		rec.User.ID = existing.User.ID
		rec.User.CreatedAt = existing.User.CreatedAt
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if rec.User.ID == "" {
		return nil, fmt.Errorf("upsert user %s: missing id", rec.User.Email)
	}

	doc := toUserDoc(rec)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &rec, nil
}

// EnsureIndexes creates the unique email index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*ports.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	rec := fromUserDoc(doc)
	return &rec, nil
}

func toUserDoc(rec ports.UserRecord) userDoc {
	u := rec.User
	doc := userDoc{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    rec.PasswordHash,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		Roles:           make([]string, len(u.Roles)),
		CreatedAt:       u.CreatedAt.Unix(),
		UpdatedAt:       u.UpdatedAt.Unix(),
	}
	for i, role := range u.Roles {
		doc.Roles[i] = string(role)
	}
	if d := u.Doctor; d != nil {
		doc.Doctor = &doctorDoc{
			ID:              d.ID,
			Specialty:       d.Specialty,
			LicenseNumber:   d.LicenseNumber,
			ClinicIDs:       d.ClinicIDs,
			YearsExperience: d.YearsExperience,
		}
	}
	if p := u.Patient; p != nil {
		doc.Patient = &patientDoc{
			ID:          p.ID,
			DateOfBirth: p.DateOfBirth,
			Gender:      p.Gender,
			BloodType:   p.BloodType,
			Allergies:   p.Allergies,
		}
	}
	return doc
}

func fromUserDoc(doc userDoc) ports.UserRecord {
	u := domain.User{
		ID:              doc.ID,
		Email:           doc.Email,
		FirstName:       doc.FirstName,
		LastName:        doc.LastName,
		Phone:           doc.Phone,
		IsActive:        doc.IsActive,
		IsEmailVerified: doc.IsEmailVerified,
		Roles:           make([]domain.Role, len(doc.Roles)),
		CreatedAt:       unixToTime(doc.CreatedAt),
		UpdatedAt:       unixToTime(doc.UpdatedAt),
	}
	for i, role := range doc.Roles {
		u.Roles[i] = domain.Role(role)
	}
	if d := doc.Doctor; d != nil {
		u.Doctor = &domain.DoctorProfile{
			ID:              d.ID,
			Specialty:       d.Specialty,
			LicenseNumber:   d.LicenseNumber,
			ClinicIDs:       d.ClinicIDs,
			YearsExperience: d.YearsExperience,
		}
	}
	if p := doc.Patient; p != nil {
		u.Patient = &domain.PatientProfile{
			ID:          p.ID,
			DateOfBirth: p.DateOfBirth,
			Gender:      p.Gender,
			BloodType:   p.BloodType,
			Allergies:   p.Allergies,
		}
	}
	return ports.UserRecord{User: u, PasswordHash: doc.PasswordHash}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

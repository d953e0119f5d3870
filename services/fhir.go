package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/fhir"
	"github.com/telemed-health/telemed-api/models"
)

const maxGeneratedUsername = 30

// FHIRService maps stored patients to and from FHIR Patient resources.
type FHIRService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFHIRService(db *gorm.DB) *FHIRService {
	return &FHIRService{db: db, now: time.Now}
}

// ListPatients returns every stored patient as a collection Bundle.
func (s *FHIRService) ListPatients(ctx context.Context) (*fhir.Bundle, error) {
	var patients []models.Patient
	if err := s.db.WithContext(ctx).Preload("User").Order("id").Find(&patients).Error; err != nil {
		return nil, Internal("failed to load patients", err)
	}
	resources := make([]fhir.Patient, len(patients))
	for i := range patients {
		resources[i] = fhir.FromPatient(&patients[i])
	}
	return fhir.NewCollection(resources), nil
}

func (s *FHIRService) GetPatient(ctx context.Context, id uint) (fhir.Patient, error) {
	var p models.Patient
	err := s.db.WithContext(ctx).Preload("User").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fhir.Patient{}, NotFound("not found")
	}
	if err != nil {
		return fhir.Patient{}, Internal("failed to load patient", err)
	}
	return fhir.FromPatient(&p), nil
}

// CreatePatient creates a patient-role User and its Patient row from a FHIR
// payload. The username is generated from the current time.
func (s *FHIRService) CreatePatient(ctx context.Context, in fhir.Patient) (fhir.Reference, error) {
	if in.ResourceType != "" && in.ResourceType != fhir.ResourceTypePatient {
		return fhir.Reference{}, Validation("resourceType must be Patient")
	}

	var dob *models.Date
	if in.BirthDate != nil && *in.BirthDate != "" {
		d, err := models.ParseDate(*in.BirthDate)
		if err != nil {
			return fhir.Reference{}, Validation("birthDate must be in YYYY-MM-DD format")
		}
		dob = &d
	}

	user := models.User{
		Username:  generatedUsername(s.now()),
		FirstName: in.DisplayName(),
		Role:      models.RolePatient,
		IsActive:  true,
	}
	patient := models.Patient{ContactNumber: in.Phone(), DateOfBirth: dob}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		patient.UserID = user.ID
		return tx.Omit("User").Create(&patient).Error
	})
	if err != nil {
		return fhir.Reference{}, Internal("failed to create patient", err)
	}

	return fhir.Reference{
		ResourceType: fhir.ResourceTypePatient,
		ID:           strconv.FormatUint(uint64(patient.ID), 10),
	}, nil
}

func generatedUsername(t time.Time) string {
	name := "patient_" + strconv.FormatInt(t.UnixNano(), 10)
	if len(name) > maxGeneratedUsername {
		name = name[:maxGeneratedUsername]
	}
	return name
}

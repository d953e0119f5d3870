package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
)

type patientInput struct {
	UserID        *uint        `json:"user_id"`
	DateOfBirth   *models.Date `json:"date_of_birth"`
	ContactNumber *string      `json:"contact_number"`
	Address       *string      `json:"address"`
}

// GetAllPatients godoc
// @Summary List patients
// @Tags patients
// @Produce json
// @Success 200 {array} models.Patient
// @Failure 500 {object} utils.ErrorResponse
// @Router /api/patients/ [get]
func GetAllPatients(c *fiber.Ctx) error {
	var patients []models.Patient
	if err := db.DB.WithContext(c.UserContext()).Preload("User").Order("id").Find(&patients).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch patients", err))
	}
	return c.JSON(patients)
}

// GetPatient godoc
// @Summary Get a patient by ID
// @Tags patients
// @Produce json
// @Param id path int true "Patient ID"
// @Success 200 {object} models.Patient
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/patients/{id}/ [get]
func GetPatient(c *fiber.Ctx) error {
	patient, err := loadPatient(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(patient)
}

// CreatePatient godoc
// @Summary Create a patient profile for an existing user
// @Tags patients
// @Accept json
// @Produce json
// @Success 201 {object} models.Patient
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/patients/ [post]
func CreatePatient(c *fiber.Ctx) error {
	var input patientInput
	fields, err := decodeBody(c, &input)
	if err != nil {
		return respondError(c, err)
	}

	var patient models.Patient
	if err := applyPatient(c.UserContext(), &patient, input, fields, false); err != nil {
		return respondError(c, err)
	}
	if err := db.DB.WithContext(c.UserContext()).Omit(clause.Associations).Create(&patient).Error; err != nil {
		return respondError(c, storeError("failed to create patient", err))
	}
	return respondPatient(c, fiber.StatusCreated, patient.ID)
}

// UpdatePatient handles PUT (partial=false) and PATCH (partial=true).
func UpdatePatient(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		patient, err := loadPatient(c)
		if err != nil {
			return respondError(c, err)
		}

		var input patientInput
		fields, err := decodeBody(c, &input)
		if err != nil {
			return respondError(c, err)
		}
		if err := applyPatient(c.UserContext(), patient, input, fields, partial); err != nil {
			return respondError(c, err)
		}
		if err := db.DB.WithContext(c.UserContext()).Omit(clause.Associations).Save(patient).Error; err != nil {
			return respondError(c, storeError("failed to update patient", err))
		}
		return respondPatient(c, fiber.StatusOK, patient.ID)
	}
}

func DeletePatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	res := db.DB.WithContext(c.UserContext()).Delete(&models.Patient{}, id)
	if res.Error != nil {
		return respondError(c, services.Internal("failed to delete patient", res.Error))
	}
	if res.RowsAffected == 0 {
		return respondError(c, errNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func loadPatient(c *fiber.Ctx) (*models.Patient, error) {
	id, err := idParam(c)
	if err != nil {
		return nil, err
	}
	var patient models.Patient
	err = db.DB.WithContext(c.UserContext()).Preload("User").First(&patient, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, services.Internal("failed to fetch patient", err)
	}
	return &patient, nil
}

func respondPatient(c *fiber.Ctx, status int, id uint) error {
	var patient models.Patient
	if err := db.DB.WithContext(c.UserContext()).Preload("User").First(&patient, id).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch patient", err))
	}
	return c.Status(status).JSON(patient)
}

func applyPatient(ctx context.Context, p *models.Patient, in patientInput, fields map[string]bool, partial bool) error {
	if fields["user_id"] || !partial {
		userID, err := ownerRef(ctx, in.UserID, &models.Patient{}, p.ID, "patient")
		if err != nil {
			return err
		}
		p.UserID = userID
		p.User = models.User{}
	}
	if fields["date_of_birth"] {
		p.DateOfBirth = in.DateOfBirth
	}
	setString(&p.ContactNumber, in.ContactNumber)
	setString(&p.Address, in.Address)
	return nil
}

// ownerRef validates a user_id reference for a one-to-one profile table:
// the user must exist and must not already own another row of that table.
func ownerRef(ctx context.Context, userID *uint, table any, selfID uint, label string) (uint, error) {
	if userID == nil || *userID == 0 {
		return 0, services.Validation("user_id is required")
	}

	var count int64
	if err := db.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", *userID).Count(&count).Error; err != nil {
		return 0, services.Internal("failed to check user", err)
	}
	if count == 0 {
		return 0, services.Validation("user_id does not reference an existing user")
	}

	q := db.DB.WithContext(ctx).Model(table).Where("user_id = ?", *userID)
	if selfID != 0 {
		q = q.Where("id <> ?", selfID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, services.Internal("failed to check "+label, err)
	}
	if count > 0 {
		return 0, services.Validation(label + " with this user already exists")
	}
	return *userID, nil
}

package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
)

type appointmentInput struct {
	PatientID           *uint                     `json:"patient_id"`
	ProviderID          *uint                     `json:"provider_id"`
	AppointmentDatetime *time.Time                `json:"appointment_datetime"`
	DurationMinutes     *int                      `json:"duration_minutes"`
	Status              *models.AppointmentStatus `json:"status"`
	ConsultationType    *models.ConsultationType  `json:"consultation_type"`
	Notes               *string                   `json:"notes"`
}

func appointmentQuery(ctx context.Context) *gorm.DB {
	return db.DB.WithContext(ctx).
		Preload("Patient.User").
		Preload("Provider.User")
}

// GetAllAppointments godoc
// @Summary List appointments
// @Description Optional filters: status, patient_id, provider_id.
// @Tags appointments
// @Produce json
// @Success 200 {array} models.Appointment
// @Failure 500 {object} utils.ErrorResponse
// @Router /api/appointments/ [get]
func GetAllAppointments(c *fiber.Ctx) error {
	q := appointmentQuery(c.UserContext()).Order("appointment_datetime").Order("id")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if id := c.QueryInt("patient_id"); id > 0 {
		q = q.Where("patient_id = ?", id)
	}
	if id := c.QueryInt("provider_id"); id > 0 {
		q = q.Where("provider_id = ?", id)
	}

	var appointments []models.Appointment
	if err := q.Find(&appointments).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch appointments", err))
	}
	return c.JSON(appointments)
}

// GetAppointment godoc
// @Summary Get an appointment by ID
// @Tags appointments
// @Produce json
// @Param id path int true "Appointment ID"
// @Success 200 {object} models.Appointment
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/appointments/{id}/ [get]
func GetAppointment(c *fiber.Ctx) error {
	appointment, err := loadAppointment(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(appointment)
}

// CreateAppointment godoc
// @Summary Book an appointment
// @Tags appointments
// @Accept json
// @Produce json
// @Success 201 {object} models.Appointment
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/appointments/ [post]
func CreateAppointment(c *fiber.Ctx) error {
	var input appointmentInput
	fields, err := decodeBody(c, &input)
	if err != nil {
		return respondError(c, err)
	}

	var appointment models.Appointment
	appointment.ApplyDefaults()
	if err := applyAppointment(c.UserContext(), &appointment, input, fields, false); err != nil {
		return respondError(c, err)
	}
	if err := appointment.Validate(); err != nil {
		return respondError(c, services.Validation(err.Error()))
	}

	if err := db.DB.WithContext(c.UserContext()).Omit(clause.Associations).Create(&appointment).Error; err != nil {
		return respondError(c, storeError("failed to create appointment", err))
	}
	return respondAppointment(c, fiber.StatusCreated, appointment.ID)
}

// UpdateAppointment handles PUT (partial=false) and PATCH (partial=true).
func UpdateAppointment(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		appointment, err := loadAppointment(c)
		if err != nil {
			return respondError(c, err)
		}

		var input appointmentInput
		fields, err := decodeBody(c, &input)
		if err != nil {
			return respondError(c, err)
		}
		if err := applyAppointment(c.UserContext(), appointment, input, fields, partial); err != nil {
			return respondError(c, err)
		}
		if err := appointment.Validate(); err != nil {
			return respondError(c, services.Validation(err.Error()))
		}

		if err := db.DB.WithContext(c.UserContext()).Omit(clause.Associations).Save(appointment).Error; err != nil {
			return respondError(c, storeError("failed to update appointment", err))
		}
		return respondAppointment(c, fiber.StatusOK, appointment.ID)
	}
}

// DeleteAppointment godoc
// @Summary Delete an appointment by ID
// @Tags appointments
// @Param id path int true "Appointment ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/appointments/{id}/ [delete]
func DeleteAppointment(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	res := db.DB.WithContext(c.UserContext()).Delete(&models.Appointment{}, id)
	if res.Error != nil {
		return respondError(c, services.Internal("failed to delete appointment", res.Error))
	}
	if res.RowsAffected == 0 {
		return respondError(c, errNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func loadAppointment(c *fiber.Ctx) (*models.Appointment, error) {
	id, err := idParam(c)
	if err != nil {
		return nil, err
	}
	var appointment models.Appointment
	err = appointmentQuery(c.UserContext()).First(&appointment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, services.Internal("failed to fetch appointment", err)
	}
	return &appointment, nil
}

func respondAppointment(c *fiber.Ctx, status int, id uint) error {
	var appointment models.Appointment
	if err := appointmentQuery(c.UserContext()).First(&appointment, id).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch appointment", err))
	}
	return c.Status(status).JSON(appointment)
}

func applyAppointment(ctx context.Context, a *models.Appointment, in appointmentInput, fields map[string]bool, partial bool) error {
	if !partial {
		for _, f := range []string{"patient_id", "provider_id", "appointment_datetime"} {
			if !fields[f] {
				return services.Validation(f + " is required")
			}
		}
	}

	if fields["patient_id"] {
		if err := mustExist(ctx, &models.Patient{}, in.PatientID, "patient_id"); err != nil {
			return err
		}
		a.PatientID = *in.PatientID
		a.Patient = models.Patient{}
	}
	if fields["provider_id"] {
		if err := mustExist(ctx, &models.Provider{}, in.ProviderID, "provider_id"); err != nil {
			return err
		}
		a.ProviderID = *in.ProviderID
		a.Provider = models.Provider{}
	}
	if fields["appointment_datetime"] {
		if in.AppointmentDatetime == nil {
			return services.Validation("appointment_datetime is required")
		}
		a.AppointmentDatetime = *in.AppointmentDatetime
	}
	if in.DurationMinutes != nil {
		a.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.ConsultationType != nil {
		a.ConsultationType = *in.ConsultationType
	}
	setString(&a.Notes, in.Notes)
	return nil
}

func mustExist(ctx context.Context, model any, id *uint, field string) error {
	if id == nil || *id == 0 {
		return services.Validation(field + " is required")
	}
	var count int64
	if err := db.DB.WithContext(ctx).Model(model).Where("id = ?", *id).Count(&count).Error; err != nil {
		return services.Internal("failed to check "+field, err)
	}
	if count == 0 {
		return services.Validation(field + " does not reference an existing record")
	}
	return nil
}

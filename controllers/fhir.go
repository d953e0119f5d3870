package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/telemed-health/telemed-api/fhir"
	"github.com/telemed-health/telemed-api/services"
)

// FHIRController exposes stored patients as FHIR Patient resources.
type FHIRController struct {
	Service *services.FHIRService
}

// ListPatients godoc
// @Summary Patients as a FHIR collection Bundle
// @Tags fhir
// @Produce json
// @Success 200 {object} fhir.Bundle
// @Router /api/fhir/Patient [get]
func (f *FHIRController) ListPatients(c *fiber.Ctx) error {
	bundle, err := f.Service.ListPatients(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(bundle)
}

func (f *FHIRController) GetPatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	patient, err := f.Service.GetPatient(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(patient)
}

// CreatePatient godoc
// @Summary Create a patient from a FHIR Patient resource
// @Tags fhir
// @Accept json
// @Produce json
// @Success 201 {object} fhir.Reference
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/fhir/Patient [post]
func (f *FHIRController) CreatePatient(c *fiber.Ctx) error {
	var in fhir.Patient
	if len(c.Body()) > 0 {
		// fiber's BodyParser does not accept application/fhir+json.
		if err := json.Unmarshal(c.Body(), &in); err != nil {
			return respondError(c, services.Validation("request body must be a FHIR Patient resource"))
		}
	}

	ref, err := f.Service.CreatePatient(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

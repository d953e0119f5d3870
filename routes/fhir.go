package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telemed-health/telemed-api/controllers"
	"github.com/telemed-health/telemed-api/middleware"
)

func SetupFHIRRoutes(api fiber.Router, fhir *controllers.FHIRController, secret []byte) {
	g := api.Group("/fhir", middleware.Protected(secret))
	g.Get("/Patient", fhir.ListPatients).Name("fhir_patients")
	g.Post("/Patient", fhir.CreatePatient).Name("fhir_patients")
	g.Get("/Patient/:id", fhir.GetPatient).Name("fhir_patient_detail")
}

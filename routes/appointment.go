package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telemed-health/telemed-api/controllers"
	"github.com/telemed-health/telemed-api/middleware"
)

// SetupResourceRoutes configures the patient, provider and appointment
// collections. All of them require a valid access token; writes are further
// gated by the configured write policy.
func SetupResourceRoutes(api fiber.Router, secret []byte, writePolicy string) {
	guard := []fiber.Handler{middleware.Protected(secret), middleware.WritePolicy(writePolicy)}

	patients := api.Group("/patients", guard...)
	patients.Get("/", controllers.GetAllPatients).Name("patient-list")
	patients.Post("/", controllers.CreatePatient).Name("patient-list")
	patients.Get("/:id/", controllers.GetPatient).Name("patient-detail")
	patients.Put("/:id/", controllers.UpdatePatient(false)).Name("patient-detail")
	patients.Patch("/:id/", controllers.UpdatePatient(true)).Name("patient-detail")
	patients.Delete("/:id/", controllers.DeletePatient).Name("patient-detail")

	providers := api.Group("/providers", guard...)
	providers.Get("/", controllers.GetAllProviders).Name("provider-list")
	providers.Post("/", controllers.CreateProvider).Name("provider-list")
	providers.Get("/:id/", controllers.GetProvider).Name("provider-detail")
	providers.Put("/:id/", controllers.UpdateProvider(false)).Name("provider-detail")
	providers.Patch("/:id/", controllers.UpdateProvider(true)).Name("provider-detail")
	providers.Delete("/:id/", controllers.DeleteProvider).Name("provider-detail")

	appointments := api.Group("/appointments", guard...)
	appointments.Get("/", controllers.GetAllAppointments).Name("appointment-list")
	appointments.Post("/", controllers.CreateAppointment).Name("appointment-list")
	appointments.Get("/:id/", controllers.GetAppointment).Name("appointment-detail")
	appointments.Put("/:id/", controllers.UpdateAppointment(false)).Name("appointment-detail")
	appointments.Patch("/:id/", controllers.UpdateAppointment(true)).Name("appointment-detail")
	appointments.Delete("/:id/", controllers.DeleteAppointment).Name("appointment-detail")
}

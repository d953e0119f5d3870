package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telemed-health/telemed-api/controllers"
	"github.com/telemed-health/telemed-api/middleware"
)

// SetupAdminRoutes configures user management and audit log browsing for
// staff accounts.
func SetupAdminRoutes(app *fiber.App, secret []byte) {
	admin := app.Group("/admin", middleware.Protected(secret), middleware.RequireStaff())

	users := admin.Group("/users")
	users.Get("/", controllers.GetAllUsers).Name("admin-user-list")
	users.Post("/", controllers.CreateUser).Name("admin-user-list")
	users.Get("/:id/", controllers.GetUser).Name("admin-user-detail")
	users.Put("/:id/", controllers.UpdateUser(false)).Name("admin-user-detail")
	users.Patch("/:id/", controllers.UpdateUser(true)).Name("admin-user-detail")
	users.Delete("/:id/", controllers.DeleteUser).Name("admin-user-detail")

	logs := admin.Group("/audit-logs")
	logs.Get("/", controllers.GetAuditLogs).Name("admin-auditlog-list")
	logs.Get("/export", controllers.ExportAuditLogs).Name("admin-auditlog-export")
}

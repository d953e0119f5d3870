package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telemed-health/telemed-api/config"
	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/utils"
)

const forbiddenDetail = "You do not have permission to perform this action."

// RequireStaff allows only staff or admin-role callers. Must run after
// Protected.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !isElevated(c) {
			return utils.Detail(c, fiber.StatusForbidden, forbiddenDetail)
		}
		return c.Next()
	}
}

// WritePolicy gates unsafe methods according to the configured rule:
// "authenticated" lets any caller write, "staff" limits writes to staff
// while reads stay open to any authenticated caller.
func WritePolicy(policy string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if policy != config.WritePolicyStaff || isSafeMethod(c.Method()) {
			return c.Next()
		}
		if !isElevated(c) {
			return utils.Detail(c, fiber.StatusForbidden, forbiddenDetail)
		}
		return c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}

// isElevated reloads the caller so revoked staff rights apply immediately.
func isElevated(c *fiber.Ctx) bool {
	userID, ok := UserID(c)
	if !ok {
		return false
	}
	var user models.User
	if err := db.DB.WithContext(c.UserContext()).First(&user, userID).Error; err != nil {
		return false
	}
	return user.IsActive && user.IsElevated()
}

package utils

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Detail writes an ErrorResponse with the given status.
func Detail(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(ErrorResponse{Detail: detail})
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telemed-health/telemed-api/controllers"
	"github.com/telemed-health/telemed-api/middleware"
)

// SetupAuthRoutes configures the OTP flow, the password token endpoint and
// the current-user lookup.
func SetupAuthRoutes(api fiber.Router, auth *controllers.AuthController, secret []byte) {
	authGroup := api.Group("/auth")
	authGroup.Post("/request-otp/", auth.RequestOTP).Name("request_otp")
	authGroup.Post("/verify-otp/", auth.VerifyOTP).Name("verify_otp")
	authGroup.Get("/me/", middleware.Protected(secret), auth.Me).Name("me")

	token := api.Group("/token")
	token.Post("/", auth.ObtainToken).Name("token_obtain_pair")
	token.Post("/refresh/", auth.RefreshToken).Name("token_refresh")
}

package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telemed-health/telemed-api/config"
	"github.com/telemed-health/telemed-api/controllers"
	"github.com/telemed-health/telemed-api/middleware"
	"github.com/telemed-health/telemed-api/services"
	"github.com/telemed-health/telemed-api/utils"
)

// Options carries everything NewApp wires into the router.
type Options struct {
	Config *config.Config
	Auth   *controllers.AuthController
	FHIR   *controllers.FHIRController
	Audit  middleware.AuditRecorder
	Logger zerolog.Logger
}

// NewApp builds the fiber application with the middleware chain
// request id -> request log -> cors -> audit -> recover -> routes. Recover
// sits inside audit so a panicking handler is still recorded as a 500.
func NewApp(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "telemed-api",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(opts.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.Config.AllowedOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if opts.Audit != nil {
		app.Use(middleware.Audit(opts.Audit))
	}
	app.Use(recover.New())

	secret := []byte(opts.Config.JWTSecret)

	api := app.Group("/api")
	api.Get("/health/", controllers.Health).Name("health")
	SetupAuthRoutes(api, opts.Auth, secret)
	SetupFHIRRoutes(api, opts.FHIR, secret)
	SetupResourceRoutes(api, secret, opts.Config.WritePolicy)
	SetupAdminRoutes(app, secret)

	return app
}

// errorHandler renders every error as {detail}.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.Detail(c, fe.Code, fe.Message)
	}

	var se *services.Error
	if errors.As(err, &se) {
		if se.Kind == services.KindInternal {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}
		return utils.Detail(c, se.Status(), se.Detail)
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	return utils.Detail(c, fiber.StatusInternalServerError, "internal server error")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/config"
	"github.com/telemed-health/telemed-api/controllers"
	"github.com/telemed-health/telemed-api/cron"
	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/logger"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/redis"
	"github.com/telemed-health/telemed-api/routes"
	"github.com/telemed-health/telemed-api/services"
	"github.com/telemed-health/telemed-api/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "telemed",
		Short:        "Telemedicine administration API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if err := db.Init(cfg.DatabaseURL); err != nil {
				return err
			}
			defer db.Close(db.DB)

			if err := db.Migrate(db.DB); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a staff account with the admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if err := db.Init(cfg.DatabaseURL); err != nil {
				return err
			}
			defer db.Close(db.DB)
			if err := db.Migrate(db.DB); err != nil {
				return err
			}

			var existing models.User
			err = db.DB.Where("username = ?", username).First(&existing).Error
			if err == nil {
				return fmt.Errorf("user %q already exists", username)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("look up user: %w", err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			admin := models.User{
				Username: username,
				Email:    email,
				Role:     models.RoleAdmin,
				IsActive: true,
				IsStaff:  true,
				Password: string(hash),
			}
			if err := db.DB.Create(&admin).Error; err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			log.Info().Uint("id", admin.ID).Str("username", admin.Username).Msg("admin created")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "admin password (defaults to $ADMIN_PASSWORD)")
	return cmd
}

func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

func runServer() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	// Database
	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer db.Close(db.DB)
	if err := db.Migrate(db.DB); err != nil {
		log.Error().Err(err).Msg("failed to migrate database")
		return err
	}

	// Services
	var mailer *utils.Mailer
	if cfg.SMTPHost != "" {
		mailer = utils.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass)
	}

	var notifier services.OTPNotifier = services.ConsoleNotifier{}
	switch cfg.OTPDelivery {
	case config.DeliveryEmail:
		notifier = services.EmailNotifier{Mailer: mailer}
	case config.DeliverySMS:
		notifier = services.SMSNotifier{DB: db.DB, SMS: utils.NewSMSClient(cfg.SMSGatewayURL, cfg.SMSAPIKey)}
	}

	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	otp := services.NewOTPService(db.DB, tokens, notifier, cfg.OTPTTL)

	if cfg.OTPMaxAttempts > 0 {
		var limiter services.AttemptLimiter = services.NewMemoryAttempts(cfg.OTPTTL)
		if cfg.RedisAddr != "" {
			client, err := redis.Connect(context.Background(), cfg.RedisAddr)
			if err != nil {
				log.Error().Err(err).Msg("failed to connect to redis")
				return err
			}
			defer client.Close()
			limiter = services.NewRedisAttempts(client, cfg.OTPTTL)
		}
		otp.WithAttemptLimit(limiter, cfg.OTPMaxAttempts)
	}

	audit := services.NewAuditLogger(db.DB, cfg.AuditQueueSize, log)

	var reminders *cron.Reminders
	if cfg.RemindersEnabled {
		reminders = cron.NewReminders(db.DB, mailer)
		if err := reminders.Start(cfg.ReminderSchedule); err != nil {
			return err
		}
	}

	app := routes.NewApp(routes.Options{
		Config: cfg,
		Auth:   &controllers.AuthController{OTP: otp, Tokens: tokens, ExposeCode: cfg.OTPExposeCode},
		FHIR:   &controllers.FHIRController{Service: services.NewFHIRService(db.DB)},
		Audit:  audit,
		Logger: log,
	})

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		serverErr <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
			return err
		}
	}

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if reminders != nil {
		reminders.Stop(ctx)
	}
	if err := audit.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("audit queue not fully drained")
	}
	log.Info().Msg("server stopped")
	return nil
}

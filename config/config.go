package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Write policies for the patient/provider/appointment collections.
const (
	WritePolicyAuthenticated = "authenticated"
	WritePolicyStaff         = "staff"
)

// OTP delivery channels.
const (
	DeliveryConsole = "console"
	DeliveryEmail   = "email"
	DeliverySMS     = "sms"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	OTPTTL         time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPDelivery    string        `mapstructure:"OTP_DELIVERY"`
	OTPExposeCode  bool          `mapstructure:"OTP_EXPOSE_CODE"`

	WritePolicy string `mapstructure:"WRITE_POLICY"`

	AuditQueueSize int `mapstructure:"AUDIT_QUEUE_SIZE"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	SMTPHost  string `mapstructure:"SMTP_HOST"`
	SMTPPort  int    `mapstructure:"SMTP_PORT"`
	EmailUser string `mapstructure:"EMAIL_USER"`
	EmailPass string `mapstructure:"EMAIL_PASS"`

	SMSGatewayURL string `mapstructure:"SMS_GATEWAY_URL"`
	SMSAPIKey     string `mapstructure:"SMS_API_KEY"`

	RemindersEnabled bool   `mapstructure:"REMINDERS_ENABLED"`
	ReminderSchedule string `mapstructure:"REMINDER_SCHEDULE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "CORS_ORIGINS",
	"JWT_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"OTP_TTL", "OTP_MAX_ATTEMPTS", "OTP_DELIVERY", "OTP_EXPOSE_CODE",
	"WRITE_POLICY", "AUDIT_QUEUE_SIZE", "REDIS_ADDR",
	"SMTP_HOST", "SMTP_PORT", "EMAIL_USER", "EMAIL_PASS",
	"SMS_GATEWAY_URL", "SMS_API_KEY",
	"REMINDERS_ENABLED", "REMINDER_SCHEDULE",
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("ACCESS_TOKEN_TTL", 5*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 24*time.Hour)
	v.SetDefault("OTP_TTL", 5*time.Minute)
	v.SetDefault("OTP_MAX_ATTEMPTS", 0)
	v.SetDefault("OTP_DELIVERY", DeliveryConsole)
	v.SetDefault("WRITE_POLICY", WritePolicyAuthenticated)
	v.SetDefault("AUDIT_QUEUE_SIZE", 1024)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("REMINDERS_ENABLED", false)
	v.SetDefault("REMINDER_SCHEDULE", "* * * * *")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Code exposure follows ENV unless set explicitly.
	if !v.IsSet("OTP_EXPOSE_CODE") {
		cfg.OTPExposeCode = cfg.IsDev()
	}
	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = "dev_secret_key"
	}

	cfg.WritePolicy = strings.ToLower(strings.TrimSpace(cfg.WritePolicy))
	cfg.OTPDelivery = strings.ToLower(strings.TrimSpace(cfg.OTPDelivery))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive, got %s", c.OTPTTL)
	}
	if c.OTPMaxAttempts < 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must not be negative, got %d", c.OTPMaxAttempts)
	}
	switch c.WritePolicy {
	case WritePolicyAuthenticated, WritePolicyStaff:
	default:
		return fmt.Errorf("WRITE_POLICY must be %q or %q, got %q", WritePolicyAuthenticated, WritePolicyStaff, c.WritePolicy)
	}
	switch c.OTPDelivery {
	case DeliveryConsole:
	case DeliveryEmail:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when OTP_DELIVERY is %q", DeliveryEmail)
		}
	case DeliverySMS:
		if c.SMSGatewayURL == "" {
			return fmt.Errorf("SMS_GATEWAY_URL is required when OTP_DELIVERY is %q", DeliverySMS)
		}
	default:
		return fmt.Errorf("OTP_DELIVERY must be one of console, email, sms, got %q", c.OTPDelivery)
	}
	if c.RemindersEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when REMINDERS_ENABLED is set")
	}
	return nil
}

// AllowedOrigins returns CORS_ORIGINS in the comma-separated form fiber's
// cors middleware expects.
func (c *Config) AllowedOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

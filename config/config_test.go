package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "sqlite://telemed.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 0, cfg.OTPMaxAttempts)
	assert.Equal(t, WritePolicyAuthenticated, cfg.WritePolicy)
	assert.Equal(t, DeliveryConsole, cfg.OTPDelivery)
	assert.True(t, cfg.OTPExposeCode, "development exposes the code by default")
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProductionHidesCode(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/telemed")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("OTP_TTL", "2m")
	t.Setenv("WRITE_POLICY", "Staff")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.OTPExposeCode)
	assert.Equal(t, 2*time.Minute, cfg.OTPTTL)
	assert.Equal(t, WritePolicyStaff, cfg.WritePolicy)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitExposeOverridesEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("OTP_EXPOSE_CODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.OTPExposeCode)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL: "sqlite://x.db",
			JWTSecret:   "k",
			OTPTTL:      time.Minute,
			WritePolicy: WritePolicyAuthenticated,
			OTPDelivery: DeliveryConsole,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, false},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, false},
		{"zero ttl", func(c *Config) { c.OTPTTL = 0 }, false},
		{"negative attempts", func(c *Config) { c.OTPMaxAttempts = -1 }, false},
		{"unknown policy", func(c *Config) { c.WritePolicy = "anyone" }, false},
		{"email without smtp", func(c *Config) { c.OTPDelivery = DeliveryEmail }, false},
		{"sms without gateway", func(c *Config) { c.OTPDelivery = DeliverySMS }, false},
		{"sms with gateway", func(c *Config) {
			c.OTPDelivery = DeliverySMS
			c.SMSGatewayURL = "http://sms.local"
		}, true},
		{"unknown delivery", func(c *Config) { c.OTPDelivery = "pigeon" }, false},
		{"reminders without smtp", func(c *Config) { c.RemindersEnabled = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	c := &Config{CORSOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, "http://a.test,http://b.test", c.AllowedOrigins())
}

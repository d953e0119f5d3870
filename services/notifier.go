package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/models"
)

// OTPNotifier delivers a freshly issued code to its owner out of band.
type OTPNotifier interface {
	Deliver(ctx context.Context, user *models.User, code string, ttl time.Duration) error
}

type EmailSender interface {
	SendEmail(to, subject, body string) error
}

type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// ConsoleNotifier only logs the code. Development use.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Deliver(_ context.Context, user *models.User, code string, ttl time.Duration) error {
	log.Info().Str("username", user.Username).Str("code", code).Dur("ttl", ttl).Msg("otp issued")
	return nil
}

type EmailNotifier struct {
	Mailer EmailSender
}

func (n EmailNotifier) Deliver(_ context.Context, user *models.User, code string, ttl time.Duration) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.Username)
	}
	body := fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>Your sign-in code is <strong>%s</strong>. It expires in %d minutes.</p>
		<p>If you did not request this code you can ignore this message.</p>
	`, user.DisplayName(), code, int(ttl.Minutes()))
	return n.Mailer.SendEmail(user.Email, "Your sign-in code", body)
}

// SMSNotifier texts the code to the contact number on the user's patient
// or provider profile.
type SMSNotifier struct {
	DB  *gorm.DB
	SMS SMSSender
}

func (n SMSNotifier) Deliver(ctx context.Context, user *models.User, code string, ttl time.Duration) error {
	number, err := n.contactNumber(ctx, user.ID)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.", code, int(ttl.Minutes()))
	return n.SMS.Send(ctx, number, msg)
}

func (n SMSNotifier) contactNumber(ctx context.Context, userID uint) (string, error) {
	var patient models.Patient
	err := n.DB.WithContext(ctx).Where("user_id = ?", userID).First(&patient).Error
	if err == nil && patient.ContactNumber != "" {
		return patient.ContactNumber, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load patient contact: %w", err)
	}

	var provider models.Provider
	err = n.DB.WithContext(ctx).Where("user_id = ?", userID).First(&provider).Error
	if err == nil && provider.ContactNumber != "" {
		return provider.ContactNumber, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load provider contact: %w", err)
	}
	return "", fmt.Errorf("user %d has no contact number", userID)
}

package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/utils"
)

var (
	ErrUsernameRequired    = Validation("username required")
	ErrUserNotFound        = NotFound("user not found")
	ErrCredentialsRequired = Validation("username and code required")
	ErrInvalidCredentials  = Validation("invalid credentials")
	ErrNoActiveOTP         = Validation("no active otp")
	ErrInvalidOrExpiredOTP = Validation("invalid or expired otp")
)

// OTPIssued is a code that was stored and handed to the notifier.
type OTPIssued struct {
	Code      string
	ExpiresAt time.Time
}

// VerifyResult is returned after a successful verification.
type VerifyResult struct {
	TokenPair
	Role models.Role `json:"role"`
}

// OTPService issues and verifies one-time passwords stored on the user row.
type OTPService struct {
	db       *gorm.DB
	tokens   *TokenIssuer
	notifier OTPNotifier
	ttl      time.Duration

	attempts    AttemptLimiter
	maxAttempts int

	now      func() time.Time
	generate func() (string, error)
}

func NewOTPService(db *gorm.DB, tokens *TokenIssuer, notifier OTPNotifier, ttl time.Duration) *OTPService {
	if notifier == nil {
		notifier = ConsoleNotifier{}
	}
	return &OTPService{
		db:       db,
		tokens:   tokens,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
		generate: utils.GenerateOTP,
	}
}

// WithAttemptLimit invalidates a pending code after max failed
// verifications. max <= 0 leaves guessing unlimited until expiry.
func (s *OTPService) WithAttemptLimit(limiter AttemptLimiter, max int) *OTPService {
	if max > 0 && limiter != nil {
		s.attempts = limiter
		s.maxAttempts = max
	}
	return s
}

// RequestOTP stores a new pending code for username and delivers it.
func (s *OTPService) RequestOTP(ctx context.Context, username string) (OTPIssued, error) {
	if username == "" {
		return OTPIssued{}, ErrUsernameRequired
	}

	user, err := s.findUser(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return OTPIssued{}, ErrUserNotFound
	}
	if err != nil {
		return OTPIssued{}, Internal("failed to load user", err)
	}

	code, err := s.generate()
	if err != nil {
		return OTPIssued{}, Internal("failed to generate otp", err)
	}
	pending := models.PendingCode{Code: code, ExpiresAt: s.now().Add(s.ttl)}
	user.SetOTP(pending)

	err = s.db.WithContext(ctx).Model(user).
		Select("otp_code", "otp_expires_at").
		Updates(user).Error
	if err != nil {
		return OTPIssued{}, Internal("failed to store otp", err)
	}

	if s.attempts != nil {
		if err := s.attempts.Reset(ctx, username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("reset otp attempts")
		}
	}

	if err := s.notifier.Deliver(ctx, user, code, s.ttl); err != nil {
		return OTPIssued{}, Internal("failed to deliver otp", err)
	}

	return OTPIssued{Code: code, ExpiresAt: pending.ExpiresAt}, nil
}

// VerifyOTP checks code against the pending one and, on success, clears it
// and issues tokens. A failed check leaves the code pending unless the
// attempt limit is reached.
func (s *OTPService) VerifyOTP(ctx context.Context, username, code string) (VerifyResult, error) {
	if username == "" || code == "" {
		return VerifyResult{}, ErrCredentialsRequired
	}

	user, err := s.findUser(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VerifyResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return VerifyResult{}, Internal("failed to load user", err)
	}

	pending, ok := user.OTP().(models.PendingCode)
	if !ok {
		return VerifyResult{}, ErrNoActiveOTP
	}
	if pending.Expired(s.now()) || subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
		s.recordFailure(ctx, user, pending)
		return VerifyResult{}, ErrInvalidOrExpiredOTP
	}

	// Only one concurrent verification can match the stored code.
	consumed, err := s.clear(ctx, user.ID, pending.Code)
	if err != nil {
		return VerifyResult{}, Internal("failed to clear otp", err)
	}
	if !consumed {
		return VerifyResult{}, ErrNoActiveOTP
	}
	user.SetOTP(models.NoActiveCode{})

	if s.attempts != nil {
		if err := s.attempts.Reset(ctx, username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("reset otp attempts")
		}
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return VerifyResult{}, Internal("failed to issue tokens", err)
	}
	return VerifyResult{TokenPair: pair, Role: user.Role}, nil
}

func (s *OTPService) findUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *OTPService) clear(ctx context.Context, userID uint, code string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND otp_code = ?", userID, code).
		Updates(map[string]any{"otp_code": "", "otp_expires_at": nil})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *OTPService) recordFailure(ctx context.Context, user *models.User, pending models.PendingCode) {
	if s.attempts == nil {
		return
	}
	n, err := s.attempts.Fail(ctx, user.Username)
	if err != nil {
		log.Warn().Err(err).Str("username", user.Username).Msg("count otp attempt")
		return
	}
	if n < int64(s.maxAttempts) {
		return
	}
	if _, err := s.clear(ctx, user.ID, pending.Code); err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("invalidate otp after attempt limit")
		return
	}
	log.Warn().Str("username", user.Username).Int64("attempts", n).Msg("otp invalidated after too many failed attempts")
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemed-health/telemed-api/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (r *recordingNotifier) Deliver(_ context.Context, _ *models.User, code string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return r.err
}

func newOTPService(t *testing.T) (*OTPService, *recordingNotifier) {
	t.Helper()
	conn := newTestDB(t)
	n := &recordingNotifier{}
	svc := NewOTPService(conn, NewTokenIssuer("secret", 5*time.Minute, time.Hour), n, 5*time.Minute)
	return svc, n
}

func TestRequestOTP_MissingUsername(t *testing.T) {
	svc, _ := newOTPService(t)
	_, err := svc.RequestOTP(context.Background(), "")
	assert.ErrorIs(t, err, ErrUsernameRequired)
	assert.Equal(t, 400, AsError(err).Status())
}

func TestRequestOTP_UnknownUserChangesNothing(t *testing.T) {
	svc, n := newOTPService(t)
	other := createUser(t, svc.db, models.User{Username: "someone"})

	_, err := svc.RequestOTP(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 404, AsError(err).Status())

	assert.Empty(t, n.codes)
	assert.Equal(t, models.NoActiveCode{}, reload(t, svc.db, other.ID).OTP())
}

func TestRequestOTP_StoresPendingCode(t *testing.T) {
	svc, n := newOTPService(t)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	u := createUser(t, svc.db, models.User{Username: "jane"})

	issued, err := svc.RequestOTP(context.Background(), "jane")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, issued.Code)
	assert.Equal(t, now.Add(5*time.Minute), issued.ExpiresAt)
	assert.Equal(t, []string{issued.Code}, n.codes)

	state, ok := reload(t, svc.db, u.ID).OTP().(models.PendingCode)
	require.True(t, ok)
	assert.Equal(t, issued.Code, state.Code)
	assert.True(t, state.ExpiresAt.Equal(now.Add(5*time.Minute)))
}

func TestRequestOTP_DeliveryFailure(t *testing.T) {
	svc, n := newOTPService(t)
	n.err = errors.New("smtp down")
	createUser(t, svc.db, models.User{Username: "jane"})

	_, err := svc.RequestOTP(context.Background(), "jane")
	require.Error(t, err)
	assert.Equal(t, "failed to deliver otp", AsError(err).Detail)
	assert.Equal(t, 500, AsError(err).Status())
}

func TestVerifyOTP_MissingFields(t *testing.T) {
	svc, _ := newOTPService(t)
	_, err := svc.VerifyOTP(context.Background(), "jane", "")
	assert.ErrorIs(t, err, ErrCredentialsRequired)
	_, err = svc.VerifyOTP(context.Background(), "", "123456")
	assert.ErrorIs(t, err, ErrCredentialsRequired)
}

func TestVerifyOTP_UnknownUserIsGeneric(t *testing.T) {
	svc, _ := newOTPService(t)
	_, err := svc.VerifyOTP(context.Background(), "ghost", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 400, AsError(err).Status())
}

func TestVerifyOTP_NoActiveCode(t *testing.T) {
	svc, _ := newOTPService(t)
	createUser(t, svc.db, models.User{Username: "jane"})
	_, err := svc.VerifyOTP(context.Background(), "jane", "123456")
	assert.ErrorIs(t, err, ErrNoActiveOTP)
}

func TestVerifyOTP_SuccessIsSingleUse(t *testing.T) {
	svc, _ := newOTPService(t)
	u := createUser(t, svc.db, models.User{Username: "doc", Role: models.RoleProvider})

	issued, err := svc.RequestOTP(context.Background(), "doc")
	require.NoError(t, err)

	res, err := svc.VerifyOTP(context.Background(), "doc", issued.Code)
	require.NoError(t, err)
	assert.Equal(t, models.RoleProvider, res.Role)
	assert.NotEmpty(t, res.Access)
	assert.NotEmpty(t, res.Refresh)

	claims, err := svc.tokens.Parse(res.Access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, models.RoleProvider, claims.Role)

	stored := reload(t, svc.db, u.ID)
	assert.Empty(t, stored.OTPCode)
	assert.Nil(t, stored.OTPExpiresAt)

	_, err = svc.VerifyOTP(context.Background(), "doc", issued.Code)
	assert.ErrorIs(t, err, ErrNoActiveOTP)
}

func TestVerifyOTP_WrongAndExpiredLookTheSame(t *testing.T) {
	svc, _ := newOTPService(t)
	createUser(t, svc.db, models.User{Username: "jane"})
	start := time.Now()
	svc.now = func() time.Time { return start }

	issued, err := svc.RequestOTP(context.Background(), "jane")
	require.NoError(t, err)

	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	_, errWrong := svc.VerifyOTP(context.Background(), "jane", wrong)

	svc.now = func() time.Time { return start.Add(6 * time.Minute) }
	_, errExpired := svc.VerifyOTP(context.Background(), "jane", issued.Code)

	assert.ErrorIs(t, errWrong, ErrInvalidOrExpiredOTP)
	assert.ErrorIs(t, errExpired, ErrInvalidOrExpiredOTP)
	assert.Equal(t, errWrong.Error(), errExpired.Error())
}

func TestVerifyOTP_FailureKeepsCodePending(t *testing.T) {
	svc, _ := newOTPService(t)
	createUser(t, svc.db, models.User{Username: "jane"})

	issued, err := svc.RequestOTP(context.Background(), "jane")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.VerifyOTP(context.Background(), "jane", "x"+issued.Code[1:])
		assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	}

	_, err = svc.VerifyOTP(context.Background(), "jane", issued.Code)
	assert.NoError(t, err)
}

func TestVerifyOTP_AttemptLimitInvalidatesCode(t *testing.T) {
	svc, _ := newOTPService(t)
	svc.WithAttemptLimit(NewMemoryAttempts(5*time.Minute), 2)
	createUser(t, svc.db, models.User{Username: "jane"})

	issued, err := svc.RequestOTP(context.Background(), "jane")
	require.NoError(t, err)
	bad := "x" + issued.Code[1:]

	_, err = svc.VerifyOTP(context.Background(), "jane", bad)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	_, err = svc.VerifyOTP(context.Background(), "jane", bad)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP, "limiting attempt keeps the generic message")

	_, err = svc.VerifyOTP(context.Background(), "jane", issued.Code)
	assert.ErrorIs(t, err, ErrNoActiveOTP)

	// A new request starts a fresh window.
	issued, err = svc.RequestOTP(context.Background(), "jane")
	require.NoError(t, err)
	_, err = svc.VerifyOTP(context.Background(), "jane", bad[:1]+issued.Code[1:])
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	_, err = svc.VerifyOTP(context.Background(), "jane", issued.Code)
	assert.NoError(t, err)
}

func TestVerifyOTP_InactiveUserIsUnknown(t *testing.T) {
	svc, _ := newOTPService(t)
	u := createUser(t, svc.db, models.User{Username: "gone"})
	require.NoError(t, svc.db.Model(u).Update("is_active", false).Error)

	_, err := svc.RequestOTP(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.VerifyOTP(context.Background(), "gone", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

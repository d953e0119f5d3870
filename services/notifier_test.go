package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemed-health/telemed-api/models"
)

type fakeMailer struct {
	to, subject, body string
}

func (f *fakeMailer) SendEmail(to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return nil
}

type fakeSMS struct {
	to, message string
}

func (f *fakeSMS) Send(_ context.Context, to, message string) error {
	f.to, f.message = to, message
	return nil
}

func TestEmailNotifier(t *testing.T) {
	m := &fakeMailer{}
	n := EmailNotifier{Mailer: m}

	err := n.Deliver(context.Background(), &models.User{Username: "jane", Email: "jane@example.com"}, "042042", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", m.to)
	assert.Contains(t, m.body, "042042")
	assert.Contains(t, m.body, "5 minutes")

	err = n.Deliver(context.Background(), &models.User{Username: "nomail"}, "1", time.Minute)
	assert.Error(t, err)
}

func TestSMSNotifier_PrefersPatientThenProvider(t *testing.T) {
	conn := newTestDB(t)
	sms := &fakeSMS{}
	n := SMSNotifier{DB: conn, SMS: sms}

	pat := createUser(t, conn, models.User{Username: "pat"})
	require.NoError(t, conn.Create(&models.Patient{UserID: pat.ID, ContactNumber: "555-0100"}).Error)
	doc := createUser(t, conn, models.User{Username: "doc", Role: models.RoleProvider})
	require.NoError(t, conn.Create(&models.Provider{UserID: doc.ID, ContactNumber: "555-0199"}).Error)
	bare := createUser(t, conn, models.User{Username: "bare"})

	require.NoError(t, n.Deliver(context.Background(), pat, "123456", 5*time.Minute))
	assert.Equal(t, "555-0100", sms.to)
	assert.Contains(t, sms.message, "123456")

	require.NoError(t, n.Deliver(context.Background(), doc, "654321", 5*time.Minute))
	assert.Equal(t, "555-0199", sms.to)

	assert.Error(t, n.Deliver(context.Background(), bare, "000000", 5*time.Minute))
}

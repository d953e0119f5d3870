package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
)

const (
	reminderLead   = 60 * time.Minute
	reminderWindow = time.Minute
)

// Reminders emails patients shortly before their scheduled consultations.
type Reminders struct {
	db     *gorm.DB
	mailer services.EmailSender
	now    func() time.Time
	cron   *cron.Cron
}

func NewReminders(db *gorm.DB, mailer services.EmailSender) *Reminders {
	return &Reminders{
		db:     db,
		mailer: mailer,
		now:    time.Now,
		cron:   cron.New(),
	}
}

// Start runs SendDue on the given cron schedule.
func (r *Reminders) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.SendDue(context.Background()); err != nil {
			log.Error().Err(err).Msg("appointment reminders failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminders %q: %w", schedule, err)
	}
	r.cron.Start()
	log.Info().Str("schedule", schedule).Msg("appointment reminder scheduler started")
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (r *Reminders) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// SendDue emails every scheduled appointment starting in
// [now+60m, now+61m) and returns how many reminders were sent. Individual
// delivery failures are logged and skipped.
func (r *Reminders) SendDue(ctx context.Context) (int, error) {
	from := r.now().Add(reminderLead)
	to := from.Add(reminderWindow)

	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient.User").
		Preload("Provider.User").
		Where("status = ? AND appointment_datetime >= ? AND appointment_datetime < ?", models.StatusScheduled, from, to).
		Order("appointment_datetime").
		Find(&appointments).Error
	if err != nil {
		return 0, fmt.Errorf("fetch due appointments: %w", err)
	}

	sent := 0
	for i := range appointments {
		a := &appointments[i]
		email := a.Patient.User.Email
		if email == "" {
			log.Warn().Uint("appointment_id", a.ID).Msg("reminder skipped: patient has no email")
			continue
		}
		if err := r.mailer.SendEmail(email, reminderSubject(a), reminderBody(a)); err != nil {
			log.Error().Err(err).Uint("appointment_id", a.ID).Msg("failed to send reminder")
			continue
		}
		sent++
		log.Info().Uint("appointment_id", a.ID).Str("to", email).Msg("reminder sent")
	}
	return sent, nil
}

func reminderSubject(a *models.Appointment) string {
	return fmt.Sprintf("Reminder: %s consultation with %s", a.ConsultationType, a.Provider.User.DisplayName())
}

func reminderBody(a *models.Appointment) string {
	return fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>This is a reminder for your upcoming consultation scheduled in one hour.</p>
		<ul>
			<li><strong>Provider:</strong> %s</li>
			<li><strong>Type:</strong> %s</li>
			<li><strong>Start Time:</strong> %s</li>
			<li><strong>End Time:</strong> %s</li>
		</ul>
		<p>If you need to reschedule or cancel, contact us as soon as possible.</p>
	`, a.Patient.User.DisplayName(), a.Provider.User.DisplayName(), a.ConsultationType,
		a.AppointmentDatetime.Format("2006-01-02 15:04"),
		a.EndsAt().Format("2006-01-02 15:04"))
}

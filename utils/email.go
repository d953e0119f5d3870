package utils

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends HTML email through an SMTP relay.
type Mailer struct {
	from   string
	dialer *gomail.Dialer
}

func NewMailer(host string, port int, user, pass string) *Mailer {
	return &Mailer{
		from:   user,
		dialer: gomail.NewDialer(host, port, user, pass),
	}
}

func (m *Mailer) SendEmail(to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

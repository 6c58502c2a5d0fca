// Package notify sends e-mail when a check-in gives up.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sisudaka/lib/notify")

type Config struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled reports whether there is enough configuration to send anything.
func (c Config) Enabled() bool {
	return c.Server != "" && c.EmailAddress != "" && len(c.To) > 0
}

func (c Config) addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return fmt.Sprintf("%s:%d", c.Server, port)
}

// Mailer is a no-op when its config is not enabled.
type Mailer struct {
	config Config
}

func NewMailer(config Config) Mailer {
	return Mailer{config: config}
}

func (m Mailer) compose(subject, body string) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("sisudaka <%s>", m.config.EmailAddress)
	mail.To = m.config.To
	mail.Subject = subject
	mail.Text = []byte(body)
	return mail
}

func (m Mailer) Send(ctx context.Context, subject, body string) error {
	if !m.config.Enabled() {
		return nil
	}

	_, span := tracer.Start(ctx, "notify:Send")
	defer span.End()

	mail := m.compose(subject, body)
	err := mail.Send(
		m.config.addr(),
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(m.config.addr(), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// Package smtp delivers rendered feedback documents over SMTP.
package smtp

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"markmailer/config"
)

// Mailer sends one message per processed student with the PDF attached. It
// implements the batch Dispatcher contract; the sequencer owns it and calls
// Close after the last row.
type Mailer struct {
	client  *mail.Client
	from    string
	subject string
	body    string
}

// New builds a Mailer from the transport parameters. The connection is
// dialed per send, not here.
func New(cfg config.SMTPConfig, from, subject string, body []string) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{
		client:  client,
		from:    from,
		subject: subject,
		body:    strings.Join(body, "\n"),
	}, nil
}

// Send delivers the artifact to one recipient.
func (m *Mailer) Send(to, artifact, studentNumber string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.SetMessageIDWithValue(fmt.Sprintf("%s@markmailer", uuid.NewString()))
	msg.Subject(m.subject)
	msg.SetBodyString(mail.TypeTextPlain, m.body)
	msg.AttachFile(artifact)
	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send feedback for %s: %w", studentNumber, err)
	}
	return nil
}

// Close releases the transport.
func (m *Mailer) Close() error {
	return m.client.Close()
}

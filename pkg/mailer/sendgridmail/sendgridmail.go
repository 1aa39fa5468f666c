// Package sendgridmail provides a mailer.Sender implementation backed by the
// SendGrid v3 API.
package sendgridmail

import (
	"context"
	"fmt"

	"a11yscan/pkg/mailer"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender sends transactional email through SendGrid.
type Sender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// Send delivers a single message through the SendGrid API.
func (s *Sender) Send(_ context.Context, msg mailer.Message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)

	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, html)

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("could not send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	return nil
}

// Ensure Sender conforms to the mailer.Sender interface at compile time.
var _ mailer.Sender = (*Sender)(nil)

// New constructs a Sender using the given SendGrid API key and sender
// identity.
func New(apiKey, fromEmail, fromName string) *Sender {
	return &Sender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Package mailer defines the interface used to send transactional email.
// Billing notifications are best effort: a mail failure never fails the
// operation that triggered it.
package mailer

import (
	"context"

	"a11yscan/pkg/logger"

	"go.uber.org/zap"
)

// Message is one transactional email.
type Message struct {
	// ToEmail is the recipient address.
	ToEmail string
	// ToName is the recipient display name.
	ToName string
	// Subject is the mail subject line.
	Subject string
	// Text is the plain-text body.
	Text string
	// HTML is the optional HTML body; falls back to Text when empty.
	HTML string
}

// Sender is the abstraction for transactional email providers.
//
//go:generate mockgen -package mockmailer -source=interface.go -destination=mock/mockmailer.go *
type Sender interface {
	// Send delivers a single message.
	Send(ctx context.Context, msg Message) error
}

// SendBestEffort sends a message and only logs on failure. Used where mail is
// a courtesy, like billing downgrade notices.
func SendBestEffort(ctx context.Context, sender Sender, msg Message) {
	if sender == nil {
		return
	}
	if err := sender.Send(ctx, msg); err != nil {
		logger.Warn(ctx, "could not send email",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

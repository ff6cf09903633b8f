// Package mail is the outgoing mass-mail transport. Delivery is best effort:
// callers fire it off after a send commits and only ever log failures.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/openvle/messaging/backend/internal/config"
)

// OutgoingMessage is one email to one recipient.
type OutgoingMessage struct {
	Subject        string
	Body           string
	RecipientEmail string
}

// Sender delivers a batch of outgoing messages.
type Sender interface {
	SendBulk(ctx context.Context, messages []OutgoingMessage) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
}

// NewSMTPSender creates a sender for the relay configured in cfg.
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		addr:     net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFromAddress,
	}
}

// SendBulk sends each message in turn and keeps going on failure, returning
// the accumulated errors.
func (s *SMTPSender) SendBulk(_ context.Context, messages []OutgoingMessage) error {
	var errs []error
	for _, m := range messages {
		if err := s.send(m); err != nil {
			errs = append(errs, fmt.Errorf("failed to send to %s: %w", m.RecipientEmail, err))
		}
	}
	return errors.Join(errs...)
}

func (s *SMTPSender) send(m OutgoingMessage) error {
	builder := enmime.Builder().
		From("", s.from).
		To("", m.RecipientEmail).
		Subject(m.Subject).
		Text([]byte(m.Body))

	return builder.Send(&smtpTransport{sender: s})
}

// smtpTransport adapts the SMTP relay to enmime's Sender interface.
type smtpTransport struct {
	sender *SMTPSender
}

func (t *smtpTransport) Send(reversePath string, recipients []string, msg []byte) error {
	var auth sasl.Client
	if t.sender.username != "" {
		auth = sasl.NewPlainClient("", t.sender.username, t.sender.password)
	}
	return smtp.SendMail(t.sender.addr, auth, reversePath, recipients, bytes.NewReader(msg))
}

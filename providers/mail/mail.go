// Package mail provides the Kubit/Addons/Mail mailer.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrNoRecipient = errors.New("mail: at least one recipient is required")
	ErrNoSubject   = errors.New("mail: subject is required")
	ErrNoBody      = errors.New("mail: html or text body is required")
	ErrNoSender    = errors.New("mail: no sender address configured")
)

// Sender delivers a fully prepared message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is an email ready for delivery.
type Message struct {
	Headers     map[string]string
	Tags        map[string]string
	Subject     string
	HTML        string
	Text        string
	From        string // overrides the configured sender
	ReplyTo     string
	To          []string
	CC          []string
	BCC         []string
	Attachments []Attachment
}

// Attachment is a file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Address formats name and email as "Name <email>", or just email when name
// is empty.
func Address(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Mailer validates messages, fills in the default sender and hands them to a
// Sender.
type Mailer struct {
	sender Sender
	from   string
	logger *slog.Logger
}

// New creates a Mailer. from is used when a message has no From.
func New(sender Sender, from string, log *slog.Logger) *Mailer {
	return &Mailer{sender: sender, from: from, logger: log}
}

// Send validates msg and delivers it.
func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if err := m.prepare(msg); err != nil {
		return err
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.ErrorContext(ctx, "mail delivery failed",
			slog.String("subject", msg.Subject),
			slog.Int("recipients", len(msg.To)),
			slog.String("error", err.Error()),
		)
		return err
	}

	m.logger.DebugContext(ctx, "mail sent",
		slog.String("subject", msg.Subject),
		slog.Int("recipients", len(msg.To)),
	)
	return nil
}

func (m *Mailer) prepare(msg *Message) error {
	if msg == nil || len(msg.To) == 0 {
		return ErrNoRecipient
	}
	for _, to := range msg.To {
		if strings.TrimSpace(to) == "" {
			return ErrNoRecipient
		}
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return ErrNoSubject
	}
	if msg.HTML == "" && msg.Text == "" {
		return ErrNoBody
	}

	if msg.From == "" {
		msg.From = m.from
	}
	if msg.From == "" {
		return ErrNoSender
	}
	return nil
}

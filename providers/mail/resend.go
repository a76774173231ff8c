package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendSender delivers messages through the Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a sender authenticated with apiKey.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

func (s *ResendSender) Send(ctx context.Context, msg *Message) error {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
		Cc:      msg.CC,
		Bcc:     msg.BCC,
		Headers: msg.Headers,
	}

	if len(msg.Attachments) > 0 {
		req.Attachments = make([]*resend.Attachment, len(msg.Attachments))
		for i, a := range msg.Attachments {
			req.Attachments[i] = &resend.Attachment{
				Filename:    a.Filename,
				Content:     a.Content,
				ContentType: a.ContentType,
			}
		}
	}

	for name, value := range msg.Tags {
		req.Tags = append(req.Tags, resend.Tag{Name: name, Value: value})
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("mail: resend: %w", err)
	}
	return nil
}

package mail

import (
	"context"
	"log/slog"
	"strings"
)

// LogSender writes messages to a logger instead of delivering them. It is the
// default outside production.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.InfoContext(ctx, "mail",
		slog.String("from", msg.From),
		slog.String("to", strings.Join(msg.To, ", ")),
		slog.String("subject", msg.Subject),
		slog.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

package email

import (
	"context"

	"github.com/redmonkez12/contacts-api/internal/logging"
)

// LogSender writes notifications to the log instead of sending them.
// Used when no SMTP host is configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationEmail(_ context.Context, msg Message) error {
	s.logger.Info("verification email (not sent)", "email", msg.Email, "link", VerificationLink(msg))
	return nil
}

func (s *LogSender) SendResetPasswordEmail(_ context.Context, msg Message) error {
	s.logger.Info("password reset email (not sent)", "email", msg.Email, "link", ResetPasswordLink(msg))
	return nil
}

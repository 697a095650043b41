package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"

	"github.com/redmonkez12/contacts-api/internal/logging"
)

// sendMail is swapped in tests
var sendMail = deliver

// Service delivers notifications over SMTP
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromEmail string) *Service {
	if fromEmail == "" {
		fromEmail = smtpUser
	}
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    fromEmail,
	}
}

// SendVerificationEmail sends the email verification link and code
func (s *Service) SendVerificationEmail(ctx context.Context, msg Message) error {
	return s.send(ctx, msg, "Verify your email address", verificationTemplate, VerificationLink(msg))
}

// SendResetPasswordEmail sends the password reset link
func (s *Service) SendResetPasswordEmail(ctx context.Context, msg Message) error {
	return s.send(ctx, msg, "Reset your password", resetPasswordTemplate, ResetPasswordLink(msg))
}

func (s *Service) send(ctx context.Context, msg Message, subject, tmpl, link string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(tmpl, msg, link)
	if err != nil {
		logger.Error("failed to render email template", "template", tmpl, "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.sendEmail(ctx, msg.Email, subject, body); err != nil {
		logger.Error("failed to send email", "email", msg.Email, "subject", subject, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("email sent", "email", msg.Email, "subject", subject)
	return nil
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	var auth smtp.Auth
	if s.smtpUser != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := net.JoinHostPort(s.smtpHost, s.smtpPort)

	send := sendMail
	// buffered so an abandoned delivery can still finish
	done := make(chan error, 1)
	go func() {
		done <- send(ctx, addr, auth, s.fromEmail, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

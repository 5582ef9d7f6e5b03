package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

type Service interface {
	SendPasswordReset(ctx context.Context, to string, resetLink string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPService sends mail through an SMTP relay.
func NewSMTPService(cfg SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendPasswordReset(ctx context.Context, to string, resetLink string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Password reset request")
	m.SetBody("text/plain", passwordResetText(resetLink))
	m.AddAlternative("text/html", passwordResetHTML(resetLink))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

type logService struct {
	logger zerolog.Logger
}

// NewLogService writes outgoing mail to the log instead of sending it, for
// development setups without an SMTP relay.
func NewLogService(logger zerolog.Logger) Service {
	return &logService{logger: logger.With().Str("component", "email").Logger()}
}

func (s *logService) SendPasswordReset(_ context.Context, to string, resetLink string) error {
	s.logger.Info().
		Str("to", to).
		Str("reset_link", resetLink).
		Msg("password reset email not sent: smtp is not configured")
	return nil
}

func passwordResetText(link string) string {
	return fmt.Sprintf(`A password reset was requested for your account.

Use the link below within 30 minutes to choose a new password:

%s

If you did not request this, you can ignore this email.
`, link)
}

func passwordResetHTML(link string) string {
	return fmt.Sprintf(`<p>A password reset was requested for your account.</p>
<p>Use the link below within 30 minutes to choose a new password:</p>
<p><a href="%[1]s">%[1]s</a></p>
<p>If you did not request this, you can ignore this email.</p>
`, link)
}

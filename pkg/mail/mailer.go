package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/evalhub/exam-eval-api/pkg/config"
)

// Mailer delivers transactional messages. The OTP flow is the only consumer.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGrid constructs a SendGrid-backed mailer.
func NewSendGrid(cfg config.MailConfig, logger *zap.Logger) *SendGridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.SendGridKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger,
	}
}

// SendOTP delivers the verification code to the recipient.
func (m *SendGridMailer) SendOTP(ctx context.Context, to, code string) error {
	plain := fmt.Sprintf("Your OTP code is: %s", code)
	html := fmt.Sprintf("<p>Your OTP code is: <b>%s</b></p>", code)
	msg := sgmail.NewSingleEmail(m.from, "Your OTP Code", sgmail.NewEmail("", to), plain, html)

	res, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= 400 {
		m.logger.Warn("sendgrid rejected message", zap.Int("status", res.StatusCode), zap.String("body", res.Body))
		return fmt.Errorf("sendgrid send: status %d", res.StatusCode)
	}
	return nil
}

// ConsoleMailer logs codes instead of sending them. Used in development
// when no SendGrid key is configured.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsole constructs a console mailer.
func NewConsole(logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{logger: logger}
}

// SendOTP logs the code at info level.
func (m *ConsoleMailer) SendOTP(_ context.Context, to, code string) error {
	m.logger.Info("otp issued", zap.String("to", to), zap.String("code", code))
	return nil
}

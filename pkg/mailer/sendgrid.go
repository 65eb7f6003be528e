package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/decode-labs/decode-api/pkg/config"
)

// Message is a plain-text notification email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
}

// Mailer sends notification emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendGrid constructs a SendGrid-backed mailer.
func NewSendGrid(cfg config.MailConfig, logger *zap.Logger) *SendGridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridMailer{
		key:    cfg.SendGridKey,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger,
	}
}

// Send delivers a single message. Failures are returned to the caller; the
// notification queue owns retries.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.ToAddress)
	mail := sgmail.NewSingleEmail(m.from, msg.Subject, to, msg.Body, "")

	req := sendgrid.GetRequest(m.key, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(mail)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}

	m.logger.Debug("email sent", zap.String("to", msg.ToAddress), zap.String("subject", msg.Subject))
	return nil
}

// NopMailer drops messages; used when mail is disabled.
type NopMailer struct{}

// Send implements Mailer.
func (NopMailer) Send(context.Context, Message) error { return nil }

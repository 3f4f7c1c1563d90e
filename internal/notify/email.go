// Package notify sends appointment confirmation emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/mediassist/pkg/logging"
)

const defaultFromName = "MediAssist"

var (
	ErrNoRecipient    = errors.New("notify: email has no recipient")
	ErrNotConfigured  = errors.New("notify: sender not configured")
	ErrProviderStatus = errors.New("notify: provider rejected email")
)

// EmailSender delivers one email. Implementations must be safe for
// concurrent use.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// Email is a single outgoing message. Text is required; HTML is optional.
type Email struct {
	To       string
	ToName   string
	ReplyTo  string
	Subject  string
	Text     string
	HTML     string
	Category string
}

func (e Email) check() error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type sendgridFunc func(ctx context.Context, msg *mail.SGMailV3) (status int, body string, err error)

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	send     sendgridFunc
	from     *mail.Email
	fromName string
	logger   *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	return newSendGridSender(func(ctx context.Context, msg *mail.SGMailV3) (int, string, error) {
		resp, err := client.SendWithContext(ctx, msg)
		if err != nil {
			return 0, "", err
		}
		return resp.StatusCode, resp.Body, nil
	}, cfg, logger)
}

func newSendGridSender(send sendgridFunc, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		send:     send,
		from:     mail.NewEmail(cfg.FromName, cfg.FromEmail),
		fromName: cfg.FromName,
		logger:   logger,
	}
}

// Send builds a v3 mail and posts it.
func (s *SendGridSender) Send(ctx context.Context, msg Email) error {
	if s == nil || s.send == nil {
		return ErrNotConfigured
	}
	if err := msg.check(); err != nil {
		return err
	}

	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	message := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.Text, html)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	status, body, err := s.send(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "category", msg.Category)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if status >= 400 {
		s.logger.Error("sendgrid rejected email", "status", status, "body", body, "category", msg.Category)
		return fmt.Errorf("%w: sendgrid status %d", ErrProviderStatus, status)
	}
	s.logger.Info("email sent", "provider", "sendgrid", "category", msg.Category, "status", status)
	return nil
}

// LogSender only logs. It backs EMAIL_PROVIDER=stub for local runs.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Email) error {
	if err := msg.check(); err != nil {
		return err
	}
	s.logger.Info("email not sent (log sender)", "subject", msg.Subject, "category", msg.Category)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*LogSender)(nil)
)

package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/mediassist/internal/appointment"
	"github.com/wolfman30/mediassist/internal/archive"
	appconfig "github.com/wolfman30/mediassist/internal/config"
	"github.com/wolfman30/mediassist/internal/notify"
	"github.com/wolfman30/mediassist/pkg/logging"
)

// Email providers accepted by EMAIL_PROVIDER.
const (
	EmailProviderNone     = "none"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// NeedsAWS reports whether the configuration uses an AWS service the
// binaries have to load SDK configuration for.
func NeedsAWS(cfg *appconfig.Config) bool {
	return strings.TrimSpace(cfg.DocumentArchiveBucket) != "" || cfg.EmailProvider == EmailProviderSES
}

// BuildEmailSender selects the confirmation email transport. It returns the
// sender (nil when email is off) and a short description for start-up logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	switch cfg.EmailProvider {
	case EmailProviderSendGrid:
		if cfg.SendGridAPIKey == "" || cfg.SendGridFromEmail == "" {
			return nil, "sendgrid selected but SENDGRID_API_KEY or SENDGRID_FROM_EMAIL missing"
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), EmailProviderSendGrid
	case EmailProviderSES:
		if cfg.SESFromEmail == "" {
			return nil, "ses selected but SES_FROM_EMAIL missing"
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), EmailProviderSES
	case EmailProviderStub:
		return notify.NewLogSender(logger), EmailProviderStub
	default:
		return nil, "email disabled"
	}
}

// WithConfirmations wraps store so stored appointments trigger a
// confirmation email. A nil sender leaves store unchanged.
func WithConfirmations(store appointment.Store, sender notify.EmailSender, cfg *appconfig.Config, logger *logging.Logger) appointment.Store {
	if sender == nil {
		return store
	}
	return notify.NewConfirmingStore(store, sender, notify.ConfirmationConfig{
		ClinicName:      cfg.ClinicName,
		StaffRecipients: cfg.StaffEmails,
		SendTimeout:     cfg.EmailSendTimeout,
	}, logger)
}

// BuildArchive returns the S3 document archive, or nil when no bucket is set.
func BuildArchive(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *archive.Store {
	bucket := strings.TrimSpace(cfg.DocumentArchiveBucket)
	if bucket == "" {
		return nil
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack and MinIO need path-style addressing
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, bucket, logger)
}

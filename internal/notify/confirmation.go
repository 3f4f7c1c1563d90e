package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/mediassist/internal/appointment"
	"github.com/wolfman30/mediassist/internal/dates"
	"github.com/wolfman30/mediassist/pkg/logging"
)

const defaultSendTimeout = 10 * time.Second

// Email categories, used for provider-side tagging.
const (
	CategoryConfirmation = "appointment-confirmation"
	CategoryStaffNotice  = "staff-notification"
)

// ConfirmingStore wraps an appointment.Store and emails the patient once a
// booking is stored. Email failures are logged and never fail the booking.
type ConfirmingStore struct {
	next        appointment.Store
	email       EmailSender
	clinicName  string
	staff       []string
	sendTimeout time.Duration
	logger      *logging.Logger
}

// ConfirmationConfig configures the confirmation emails.
type ConfirmationConfig struct {
	ClinicName string
	// StaffRecipients get a copy of every booking.
	StaffRecipients []string
	SendTimeout     time.Duration
}

// NewConfirmingStore panics on a nil store. A nil sender disables email.
func NewConfirmingStore(next appointment.Store, email EmailSender, cfg ConfirmationConfig, logger *logging.Logger) *ConfirmingStore {
	if next == nil {
		panic("notify: appointment store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClinicName == "" {
		cfg.ClinicName = "MediAssist"
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &ConfirmingStore{
		next:        next,
		email:       email,
		clinicName:  cfg.ClinicName,
		staff:       cfg.StaffRecipients,
		sendTimeout: cfg.SendTimeout,
		logger:      logger,
	}
}

// Insert stores the record and then sends the confirmation emails. A
// booking that was already stored is passed through without new emails.
func (s *ConfirmingStore) Insert(ctx context.Context, record appointment.Record) (string, error) {
	id, err := s.next.Insert(ctx, record)
	if err != nil {
		return id, err
	}
	if s.email == nil {
		return id, nil
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sendTimeout)
	defer cancel()

	if to := strings.TrimSpace(record[appointment.SlotEmail]); to != "" {
		if err := s.email.Send(sendCtx, s.patientMessage(record, id)); err != nil {
			s.logger.Warn("notify: failed to send appointment confirmation", "appointment_id", id, "error", err)
		}
	}
	for _, recipient := range s.staff {
		msg := s.staffMessage(record, id)
		msg.To = recipient
		if err := s.email.Send(sendCtx, msg); err != nil {
			s.logger.Warn("notify: failed to send staff notification", "appointment_id", id, "to", recipient, "error", err)
		}
	}
	return id, nil
}

func (s *ConfirmingStore) patientMessage(r appointment.Record, id string) Email {
	when := describeWhen(r)
	body := fmt.Sprintf(`Hi %s,

Your appointment at %s is confirmed for %s.

Phone: %s
Address: %s
Reference: %s

Reply to this email if you need to change anything.

%s`, r[appointment.SlotName], s.clinicName, when, r[appointment.SlotPhone], r[appointment.SlotAddress], id, s.clinicName)

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>Appointment confirmed</h2>
<p>Hi <strong>%s</strong>, your appointment at %s is confirmed for <strong>%s</strong>.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px;"><strong>Phone:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Address:</strong></td><td style="padding: 8px;">%s</td></tr>
  <tr><td style="padding: 8px;"><strong>Reference:</strong></td><td style="padding: 8px;">%s</td></tr>
</table>
</div>`,
		html.EscapeString(r[appointment.SlotName]), html.EscapeString(s.clinicName), html.EscapeString(when),
		html.EscapeString(r[appointment.SlotPhone]), html.EscapeString(r[appointment.SlotAddress]), html.EscapeString(id))

	return Email{
		To:       r[appointment.SlotEmail],
		ToName:   r[appointment.SlotName],
		Subject:  fmt.Sprintf("Your appointment on %s", when),
		Text:     body,
		HTML:     htmlBody,
		Category: CategoryConfirmation,
	}
}

func (s *ConfirmingStore) staffMessage(r appointment.Record, id string) Email {
	body := fmt.Sprintf(`New appointment booked through the assistant.

Patient: %s
Phone: %s
Email: %s
Address: %s
When: %s
Reference: %s`, r[appointment.SlotName], r[appointment.SlotPhone], r[appointment.SlotEmail], r[appointment.SlotAddress], describeWhen(r), id)
	return Email{
		ReplyTo:  r[appointment.SlotEmail],
		Subject:  fmt.Sprintf("New appointment - %s", r[appointment.SlotName]),
		Text:     body,
		Category: CategoryStaffNotice,
	}
}

func describeWhen(r appointment.Record) string {
	day := r[appointment.SlotAppointmentDate]
	if d, err := dates.ParseDate(day); err == nil {
		day = d.Display()
	}
	if t := r[appointment.SlotAppointmentTime]; t != "" {
		return day + " at " + t
	}
	return day
}

package appointment

import (
	"strings"
	"time"

	"github.com/wolfman30/mediassist/internal/dates"
)

// Slot names, in the order they are collected.
const (
	SlotName            = "name"
	SlotPhone           = "phone"
	SlotEmail           = "email"
	SlotAddress         = "address"
	SlotAppointmentDate = "appointment_date"
	SlotAppointmentTime = "appointment_time"
)

// Normalizer validates raw input for a slot and returns the value to store.
type Normalizer func(input string, now time.Time) (string, error)

// SlotSpec configures one step of the booking dialogue.
type SlotSpec struct {
	Name      string
	Label     string
	Prompt    string
	Reprompt  string
	Normalize Normalizer
	// Format renders a stored value for the summary; nil prints it as is.
	Format func(string) string
}

// SlotOptions tweak the default slot list.
type SlotOptions struct {
	StrictEmail bool
}

// DefaultSlots returns the appointment slots in collection order.
func DefaultSlots(opts SlotOptions) []SlotSpec {
	return []SlotSpec{
		{
			Name:      SlotName,
			Label:     "Full name",
			Prompt:    "Could you please tell me your full name?",
			Reprompt:  "Please tell me your full name so I can book the appointment.",
			Normalize: textNormalizer(SlotName, false),
		},
		{
			Name:      SlotPhone,
			Label:     "Phone number",
			Prompt:    "Great! Could you please provide your phone number?",
			Reprompt:  "That doesn't look like a valid phone number. Please enter digits only, for example 5551234.",
			Normalize: textNormalizer(SlotPhone, false),
		},
		{
			Name:      SlotEmail,
			Label:     "Email address",
			Prompt:    "Got it! Could you please share your email address?",
			Reprompt:  "That doesn't look like a valid email address. Could you please check it and send it again?",
			Normalize: textNormalizer(SlotEmail, opts.StrictEmail),
		},
		{
			Name:      SlotAddress,
			Label:     "Address",
			Prompt:    "Thanks! Could you please provide your physical address?",
			Reprompt:  "Please provide your physical address.",
			Normalize: textNormalizer(SlotAddress, false),
		},
		{
			Name:      SlotAppointmentDate,
			Label:     "Appointment date",
			Prompt:    "Awesome! What date would you like to schedule the appointment?",
			Reprompt:  `Sorry, I could not understand the date, please rephrase. You can say things like "tomorrow", "next Monday" or "17 December 2024".`,
			Normalize: normalizeDate,
			Format:    formatDate,
		},
		{
			Name:      SlotAppointmentTime,
			Label:     "Appointment time",
			Prompt:    "Great! Could you also provide a time for your appointment?",
			Reprompt:  "Please let me know what time works for you, for example 10:30 am.",
			Normalize: normalizeTime,
		},
	}
}

func textNormalizer(slot string, strictEmail bool) Normalizer {
	return func(input string, _ time.Time) (string, error) {
		value := strings.TrimSpace(input)
		if err := validateSlot(slot, value, strictEmail); err != nil {
			return "", err
		}
		return value, nil
	}
}

func normalizeDate(input string, now time.Time) (string, error) {
	d, err := dates.Resolve(input, now)
	if err != nil {
		return "", &ValidationError{Slot: SlotAppointmentDate, Value: strings.TrimSpace(input), Reason: "unrecognised date", Err: err}
	}
	return d.String(), nil
}

func formatDate(value string) string {
	d, err := dates.ParseDate(value)
	if err != nil {
		return value
	}
	return d.Display()
}

// normalizeTime keeps a canonical HH:MM when the input names a clock time and
// the trimmed free text otherwise ("morning", "after lunch").
func normalizeTime(input string, _ time.Time) (string, error) {
	value := strings.TrimSpace(input)
	if err := validateSlot(SlotAppointmentTime, value, false); err != nil {
		return "", err
	}
	if t, ok := dates.ResolveTime(value); ok {
		return t, nil
	}
	return value, nil
}

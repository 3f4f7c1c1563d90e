package appointment

import (
	"net/mail"
	"strings"
)

// ValidatePhone reports whether s is a non-empty run of decimal digits.
func ValidatePhone(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateEmail accepts any value containing both "@" and ".".
func ValidateEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

// ValidateEmailStrict additionally requires an RFC 5322 address with a
// dotted domain. Enabled through STRICT_EMAIL_VALIDATION.
func ValidateEmailStrict(s string) bool {
	if !ValidateEmail(s) {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// ValidateSlot checks a raw value for the named slot. Phone and email have
// dedicated rules; every other slot accepts any non-blank text.
func ValidateSlot(slot, value string) error {
	return validateSlot(slot, value, false)
}

func validateSlot(slot, value string, strictEmail bool) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &ValidationError{Slot: slot, Value: value, Reason: "value is required"}
	}
	switch slot {
	case SlotPhone:
		if !ValidatePhone(value) {
			return &ValidationError{Slot: slot, Value: value, Reason: "phone must contain digits only"}
		}
	case SlotEmail:
		ok := ValidateEmail(value)
		if strictEmail {
			ok = ValidateEmailStrict(value)
		}
		if !ok {
			return &ValidationError{Slot: slot, Value: value, Reason: "email must contain @ and ."}
		}
	}
	return nil
}

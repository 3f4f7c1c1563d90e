package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

type redaction struct {
	pattern *regexp.Regexp
	label   string
}

// Applied in order. Labelled identifiers go first so their digits are not
// claimed by the phone pattern.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)\b(?:mrn|medical record (?:no\.?|number)|patient id)\s*[:#]?\s*[A-Z0-9-]{4,}`), "[MRN]"},
	{regexp.MustCompile(`(?i)\b(?:dob|date of birth|born)\s*[:\-]?\s*\d{1,4}[/.\-]\d{1,2}[/.\-]\d{1,4}`), "[DOB]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`), "[PHONE]"},
}

// HashContent returns the hex-encoded SHA-256 of data.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ScrubPII masks record numbers, birth dates, SSNs, emails and phone
// numbers in document excerpts before they are written to the manifest.
func ScrubPII(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.label)
	}
	return text
}

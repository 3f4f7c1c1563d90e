package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	meridiemTimeRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.?|p\.m\.?)(?:\W|$)`)
	clockTimeRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// ResolveTime extracts a time of day from free text and returns it as HH:MM.
// It understands "3pm", "10:30 am", "15:00", "noon" and "midnight". The
// boolean is false when no time could be recognised.
func ResolveTime(text string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch {
	case s == "":
		return "", false
	case strings.Contains(s, "noon"):
		return "12:00", true
	case strings.Contains(s, "midnight"):
		return "00:00", true
	}

	if m := meridiemTimeRe.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return "", false
		}
		if strings.HasPrefix(m[3], "p") && hour != 12 {
			hour += 12
		}
		if strings.HasPrefix(m[3], "a") && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}

	if m := clockTimeRe.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	return "", false
}

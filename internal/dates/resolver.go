package dates

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparseable is returned when no rule understands the input.
var ErrUnparseable = errors.New("dates: could not understand the date")

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tues": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thurs": time.Thursday, "thur": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

const (
	weekdayPattern = `(monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat|sunday|sun)`
	monthPattern   = `(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)`
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	nextWeekdayRe = regexp.MustCompile(`\bnext\s+` + weekdayPattern + `\b`)
	weekdayRe     = regexp.MustCompile(`\b` + weekdayPattern + `\b`)
	ordinalRe     = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	monthWordRe   = regexp.MustCompile(`(?i)\b` + monthPattern + `\b`)
	monthDayRe    = regexp.MustCompile(`\b` + monthPattern + `\.?\s+(\d{1,2})(?:,?\s+(\d{4}))?\b`)
	digitsRe      = regexp.MustCompile(`\d+`)
	dayMonthRe    = regexp.MustCompile(`\b(\d{1,2})\s+(?:of\s+)?` + monthPattern + `\.?(?:,?\s+(\d{4}))?\b`)
)

// Resolve converts a natural-language date expression into a calendar day,
// relative to now. Rules are tried in a fixed order and the first match wins:
// today, tomorrow, day after tomorrow, "next <weekday>", a bare or "coming"
// weekday, then a fuzzy absolute date.
func Resolve(text string, now time.Time) (Date, error) {
	norm := normalize(text)
	if norm == "" {
		return Date{}, ErrUnparseable
	}
	today := DateOf(now)

	switch norm {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	case "day after tomorrow", "the day after tomorrow":
		return today.AddDays(2), nil
	}

	if m := nextWeekdayRe.FindStringSubmatch(norm); m != nil {
		return NextWeekday(today, weekdayNames[m[1]]), nil
	}
	if m := weekdayRe.FindStringSubmatch(norm); m != nil {
		return ComingWeekday(today, weekdayNames[m[1]]), nil
	}

	if d, ok := parseAbsolute(text, now); ok {
		return d, nil
	}
	return Date{}, ErrUnparseable
}

// NextWeekday returns wd in the week after the one containing today. Weeks
// start on Monday, so the result is always strictly after this week's wd and
// never today; when wd is today's weekday the result is exactly a week out.
func NextWeekday(today Date, wd time.Weekday) Date {
	sinceMonday := (int(today.Weekday()) + 6) % 7
	target := (int(wd) + 6) % 7
	return today.AddDays(-sinceMonday + 7 + target)
}

// ComingWeekday returns the first wd after today; same-day rolls a full week.
func ComingWeekday(today Date, wd time.Weekday) Date {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDays(ahead)
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimRight(s, ".!?,;")
}

// parseAbsolute handles explicit dates. Month-name phrases are matched first
// so year-less input such as "dec 17" or "17th of december" rolls to the next
// occurrence; anything else (numeric or spelled layouts) goes to dateparse.
func parseAbsolute(text string, now time.Time) (Date, bool) {
	cleaned := strings.TrimRight(strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " ")), ".!?;")
	cleaned = ordinalRe.ReplaceAllString(cleaned, "$1")

	lower := strings.ToLower(cleaned)
	if m := monthDayRe.FindStringSubmatch(lower); m != nil {
		return buildDate(now, monthNames[m[1]], m[2], m[3])
	}
	if m := dayMonthRe.FindStringSubmatch(lower); m != nil {
		return buildDate(now, monthNames[m[2]], m[1], m[3])
	}

	if !namesDayAndMonth(lower) {
		return Date{}, false
	}
	cleaned = monthWordRe.ReplaceAllStringFunc(cleaned, func(m string) string {
		return strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
	})
	t, err := dateparse.ParseIn(cleaned, now.Location())
	if err != nil || t.Year() < 1000 {
		return Date{}, false
	}
	return DateOf(t), true
}

// namesDayAndMonth rejects input that dateparse would complete with a
// default day or month, such as "2024" or "may 2024". Four-digit groups count
// as years; a group of six or more digits is a compact full date.
func namesDayAndMonth(text string) bool {
	groups := 0
	for _, g := range digitsRe.FindAllString(text, -1) {
		switch {
		case len(g) >= 6:
			return true
		case len(g) != 4:
			groups++
		}
	}
	if monthWordRe.MatchString(text) {
		return groups >= 1
	}
	return groups >= 2
}

func buildDate(now time.Time, month time.Month, dayStr, yearStr string) (Date, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return Date{}, false
	}
	today := DateOf(now)
	year := today.Year
	explicitYear := yearStr != ""
	if explicitYear {
		if year, err = strconv.Atoi(yearStr); err != nil {
			return Date{}, false
		}
	}
	d := Date{Year: year, Month: month, Day: day}
	// reject overflow such as "february 30"
	if d.AddDays(0) != d {
		return Date{}, false
	}
	if !explicitYear && d.Before(today) {
		d.Year++
		if d.AddDays(0) != d {
			return Date{}, false
		}
	}
	return d, true
}

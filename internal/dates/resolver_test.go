package dates

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// Wednesday, 18 December 2024.
var refNow = time.Date(2024, time.December, 18, 10, 30, 0, 0, time.UTC)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestResolveRelativeWords(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"today", "2024-12-18"},
		{"Today", "2024-12-18"},
		{"  tomorrow. ", "2024-12-19"},
		{"day after tomorrow", "2024-12-20"},
		{"the day after tomorrow", "2024-12-20"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Resolve(tt.input, refNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("Resolve(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveWeekdays(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"next monday", "2024-12-23"},
		{"next Wednesday", "2024-12-25"},
		{"next friday please", "2024-12-27"},
		{"next sunday", "2024-12-29"},
		{"next thu", "2024-12-26"},
		{"friday", "2024-12-20"},
		{"wednesday", "2024-12-25"},
		{"coming monday", "2024-12-23"},
		{"this sunday", "2024-12-22"},
		{"how about sat", "2024-12-21"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Resolve(tt.input, refNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("Resolve(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveAbsoluteDates(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"17 December 2024", "2024-12-17"},
		{"17th December 2024", "2024-12-17"},
		{"December 25", "2024-12-25"},
		{"dec 25th", "2024-12-25"},
		{"17th of december", "2025-12-17"},
		{"jan 3", "2025-01-03"},
		{"March 4, 2025", "2025-03-04"},
		{"2025-01-05", "2025-01-05"},
		{"12/24/2024", "2024-12-24"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Resolve(tt.input, refNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("Resolve(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveUnparseable(t *testing.T) {
	for _, input := range []string{"", "   ", "someday soon", "february 30", "whenever works",
		"2024", "may 2024", "2024-05", "12/2024"} {
		if _, err := Resolve(input, refNow); !errors.Is(err, ErrUnparseable) {
			t.Fatalf("Resolve(%q) error = %v, want ErrUnparseable", input, err)
		}
	}
}

func TestNextWeekdayNeverTodayAndInFollowingWeek(t *testing.T) {
	monday := Date{Year: 2024, Month: time.December, Day: 16}
	for offset := 0; offset < 7; offset++ {
		now := monday.AddDays(offset).Time(time.UTC).Add(9 * time.Hour)
		today := DateOf(now)
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			name := strings.ToLower(wd.String())
			got, err := Resolve("next "+name, now)
			if err != nil {
				t.Fatalf("next %s from %s: %v", name, today, err)
			}
			if got == today {
				t.Fatalf("next %s from %s returned today", name, today)
			}
			if got.Weekday() != wd {
				t.Fatalf("next %s from %s returned a %s", name, today, got.Weekday())
			}
			thisWeek := monday.AddDays((int(wd) + 6) % 7)
			gap := thisWeek.DaysUntil(got)
			if gap <= 0 || gap > 7 {
				t.Fatalf("next %s from %s = %s, want within 7 days after %s", name, today, got, thisWeek)
			}
		}
	}
}

func TestComingWeekdaySameDayAdvancesAWeek(t *testing.T) {
	monday := Date{Year: 2024, Month: time.December, Day: 16}
	for offset := 0; offset < 7; offset++ {
		now := monday.AddDays(offset).Time(time.UTC).Add(15 * time.Hour)
		today := DateOf(now)
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			name := strings.ToLower(wd.String())
			got, err := Resolve("coming "+name, now)
			if err != nil {
				t.Fatalf("coming %s: %v", name, err)
			}
			ahead := today.DaysUntil(got)
			if wd == today.Weekday() {
				if ahead != 7 {
					t.Fatalf("coming %s on a %s = %s, want today + 7", name, today.Weekday(), got)
				}
				continue
			}
			if ahead < 1 || ahead > 6 || got.Weekday() != wd {
				t.Fatalf("coming %s from %s = %s", name, today, got)
			}
		}
	}
}

func TestResolveUsesReferenceLocation(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	// 02:00 UTC on the 19th is still the 18th in UTC-8
	now := time.Date(2024, time.December, 19, 2, 0, 0, 0, time.UTC).In(loc)
	got, err := Resolve("today", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := mustDate(t, "2024-12-18"); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestDateHelpers(t *testing.T) {
	d := mustDate(t, "2024-02-28")
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Fatalf("leap day arithmetic: got %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Fatalf("month rollover: got %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.AddDays(1).Before(d) {
		t.Fatalf("Before ordering is wrong")
	}
	if got := mustDate(t, "2024-12-16").Display(); got != "Monday, December 16, 2024" {
		t.Fatalf("Display = %q", got)
	}
	if _, err := ParseDate("16/12/2024"); err == nil {
		t.Fatalf("expected error for non canonical layout")
	}
}

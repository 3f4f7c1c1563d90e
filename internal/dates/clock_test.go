package dates

import "testing"

func TestResolveTime(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"3pm", "15:00", true},
		{"3 PM", "15:00", true},
		{"10:30 am", "10:30", true},
		{"around 9:15 a.m. if possible", "09:15", true},
		{"12am", "00:00", true},
		{"12 pm", "12:00", true},
		{"15:45", "15:45", true},
		{"at noon", "12:00", true},
		{"midnight", "00:00", true},
		{"morning", "", false},
		{"13pm", "", false},
		{"25:00", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ResolveTime(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("ResolveTime(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEveryUpHasADown(t *testing.T) {
	entries, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no migrations embedded")
	}
	files := map[string]bool{}
	for _, name := range entries {
		files[name] = true
	}
	for name := range files {
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if !files[down] {
			t.Fatalf("%s has no matching %s", name, down)
		}
	}
}

func TestAppointmentsTableShape(t *testing.T) {
	b, err := fs.ReadFile(FS, "000001_create_appointments.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(b)
	for _, col := range []string{"session_id", "name", "phone", "email", "address", "appointment_date", "appointment_time", "created_at"} {
		if !strings.Contains(sql, col) {
			t.Fatalf("appointments table missing column %q", col)
		}
	}
}

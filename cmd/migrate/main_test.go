package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

func noEnv(string) string { return "" }

func TestCommandsRequireDatabaseURL(t *testing.T) {
	for _, args := range [][]string{{"up"}, {"down"}, {"version"}, {"force", "1"}} {
		cmd := newRootCmd(noEnv)
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Fatalf("%v: expected DATABASE_URL error, got %v", args, err)
		}
	}
}

func TestForceRejectsBadVersion(t *testing.T) {
	cmd := newRootCmd(func(string) string { return "postgres://unused" })
	cmd.SetArgs([]string{"force", "abc"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid version") {
		t.Fatalf("expected invalid version error, got %v", err)
	}
}

func TestParseSteps(t *testing.T) {
	if n, err := parseSteps(nil); err != nil || n != 1 {
		t.Fatalf("default steps = %d, %v", n, err)
	}
	if n, err := parseSteps([]string{"3"}); err != nil || n != 3 {
		t.Fatalf("steps = %d, %v", n, err)
	}
	for _, bad := range []string{"0", "-2", "x"} {
		if _, err := parseSteps([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

type fakeVersion struct {
	version uint
	dirty   bool
	err     error
}

func (f fakeVersion) Version() (uint, bool, error) { return f.version, f.dirty, f.err }

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	if err := report(&buf, fakeVersion{version: 1}, "migrations complete"); err != nil {
		t.Fatalf("report: %v", err)
	}
	if got := buf.String(); got != "migrations complete\nschema version: 1 (clean)\n" {
		t.Fatalf("unexpected output %q", got)
	}

	buf.Reset()
	if err := report(&buf, fakeVersion{version: 2, dirty: true}, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(buf.String(), "2 (dirty)") {
		t.Fatalf("expected dirty marker, got %q", buf.String())
	}

	buf.Reset()
	if err := report(&buf, fakeVersion{err: migrate.ErrNilVersion}, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	if buf.String() != "schema version: none\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	if err := report(&buf, fakeVersion{err: errors.New("boom")}, ""); err == nil {
		t.Fatalf("expected version error")
	}
}

package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func completeRecord() Record {
	return Record{
		SlotName:            "Jane Doe",
		SlotPhone:           "5551234",
		SlotEmail:           "jane@x.com",
		SlotAddress:         "12 Main St",
		SlotAppointmentDate: "2024-12-23",
		SlotAppointmentTime: "10:00",
	}
}

func TestInMemoryStoreInsert(t *testing.T) {
	store := NewInMemoryStore()
	ctx := WithSessionID(context.Background(), "sess-1")

	id, err := store.Insert(ctx, completeRecord())
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	appt, ok := store.Get(id)
	if !ok {
		t.Fatalf("expected appointment %s to be stored", id)
	}
	if appt.SessionID != "sess-1" || appt.Name != "Jane Doe" || appt.AppointmentDate != "2024-12-23" {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if got := store.List(); len(got) != 1 || got[0].ID != id {
		t.Fatalf("unexpected list %+v", got)
	}
}

func TestInMemoryStoreInsertIsIdempotentOnAppointmentID(t *testing.T) {
	store := NewInMemoryStore()
	ctx := WithAppointmentID(context.Background(), "booking-1")

	id, err := store.Insert(ctx, completeRecord())
	if err != nil || id != "booking-1" {
		t.Fatalf("first insert: id=%q err=%v", id, err)
	}
	id, err = store.Insert(ctx, completeRecord())
	if !errors.Is(err, ErrAlreadyStored) || id != "booking-1" {
		t.Fatalf("expected ErrAlreadyStored for booking-1, got %q %v", id, err)
	}
	if got := len(store.List()); got != 1 {
		t.Fatalf("expected one stored appointment, got %d", got)
	}
}

func TestInMemoryStoreRejectsIncompleteRecord(t *testing.T) {
	record := completeRecord()
	delete(record, SlotEmail)

	_, err := NewInMemoryStore().Insert(context.Background(), record)
	if !errors.Is(err, ErrStore) || !errors.Is(err, ErrIncompleteRecord) {
		t.Fatalf("expected ErrStore wrapping ErrIncompleteRecord, got %v", err)
	}
}

func TestSessionIDFromContext(t *testing.T) {
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty session id, got %q", got)
	}
	if got := SessionIDFromContext(WithSessionID(context.Background(), "abc")); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestPostgresStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	ctx := WithSessionID(context.Background(), "sess-1")
	day := time.Date(2024, time.December, 23, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "sess-1", "Jane Doe", "5551234", "jane@x.com", "12 Main St", day, "10:00").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("7f1c0d7e-0000-4000-8000-000000000001"))

	id, err := store.Insert(ctx, completeRecord())
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if id != "7f1c0d7e-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreInsertFailureWrapsErrStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	mock.ExpectQuery("INSERT INTO appointments").WillReturnError(pgx.ErrTxClosed)

	_, err = store.Insert(context.Background(), completeRecord())
	if !errors.Is(err, ErrStore) || !errors.Is(err, pgx.ErrTxClosed) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreRejectsBadDateWithoutQuerying(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	record := completeRecord()
	record[SlotAppointmentDate] = "next monday"
	if _, err := NewPostgresStore(mock, nil).Insert(context.Background(), record); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestPostgresStoreInsertConflictReportsAlreadyStored(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	ctx := WithAppointmentID(context.Background(), "7f1c0d7e-0000-4000-8000-000000000009")

	mock.ExpectQuery("(?s)INSERT INTO appointments.*ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs("7f1c0d7e-0000-4000-8000-000000000009", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, err := store.Insert(ctx, completeRecord())
	if !errors.Is(err, ErrAlreadyStored) || id != "7f1c0d7e-0000-4000-8000-000000000009" {
		t.Fatalf("expected ErrAlreadyStored with the existing id, got %q %v", id, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

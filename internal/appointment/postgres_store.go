package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/mediassist/internal/dates"
	"github.com/wolfman30/mediassist/pkg/logging"
)

var storeTracer = otel.Tracer("mediassist/appointment-store")

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore writes appointments to the appointments table.
type PostgresStore struct {
	pool   PgxPool
	logger *logging.Logger
}

func NewPostgresStore(pool PgxPool, logger *logging.Logger) *PostgresStore {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Insert stores a confirmed record and returns the new row id. A row that
// already exists under the same id is left alone and reported with
// ErrAlreadyStored.
func (s *PostgresStore) Insert(ctx context.Context, record Record) (string, error) {
	ctx, span := storeTracer.Start(ctx, "appointment.insert")
	defer span.End()

	appt, err := NewAppointment(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "incomplete record")
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}
	day, err := dates.ParseDate(appt.AppointmentDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad date")
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}
	span.SetAttributes(
		attribute.String("appointment.id", appt.ID),
		attribute.String("session.id", appt.SessionID),
	)

	query := `
		INSERT INTO appointments (id, session_id, name, phone, email, address, appointment_date, appointment_time)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var id string
	if err := s.pool.QueryRow(ctx, query,
		appt.ID,
		appt.SessionID,
		appt.Name,
		appt.Phone,
		appt.Email,
		appt.Address,
		day.Time(nil),
		appt.AppointmentTime,
	).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("appointment already stored", "appointment_id", appt.ID, "session_id", appt.SessionID)
			return appt.ID, ErrAlreadyStored
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.logger.Error("appointment insert failed", "session_id", appt.SessionID, "error", err)
		return "", fmt.Errorf("%w: insert failed: %w", ErrStore, err)
	}
	return id, nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("appointment: ping: %w", err)
	}
	return nil
}

package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists confirmed appointments and returns their id.
type Store interface {
	Insert(ctx context.Context, record Record) (string, error)
}

// Appointment is a stored booking.
type Appointment struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id,omitempty"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Address         string    `json:"address"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewAppointment maps a complete record onto an Appointment. The id comes
// from WithAppointmentID when set, otherwise a fresh one is generated.
func NewAppointment(ctx context.Context, record Record) (*Appointment, error) {
	for _, slot := range []string{SlotName, SlotPhone, SlotEmail, SlotAddress, SlotAppointmentDate, SlotAppointmentTime} {
		if !record.Filled(slot) {
			return nil, fmt.Errorf("%w: missing %s", ErrIncompleteRecord, slot)
		}
	}
	id := AppointmentIDFromContext(ctx)
	if id == "" {
		id = uuid.New().String()
	}
	return &Appointment{
		ID:              id,
		SessionID:       SessionIDFromContext(ctx),
		Name:            record[SlotName],
		Phone:           record[SlotPhone],
		Email:           record[SlotEmail],
		Address:         record[SlotAddress],
		AppointmentDate: record[SlotAppointmentDate],
		AppointmentTime: record[SlotAppointmentTime],
		CreatedAt:       time.Now().UTC(),
	}, nil
}

type (
	sessionIDKey     struct{}
	appointmentIDKey struct{}
)

// WithSessionID tags ctx with the chat session a booking belongs to.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session id set by WithSessionID, if any.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// WithAppointmentID fixes the id a booking is stored under.
func WithAppointmentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, appointmentIDKey{}, id)
}

// AppointmentIDFromContext returns the id set by WithAppointmentID, if any.
func AppointmentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(appointmentIDKey{}).(string)
	return id
}

// InMemoryStore keeps appointments in process. Used by the terminal chat and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Appointment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]*Appointment)}
}

func (s *InMemoryStore) Insert(ctx context.Context, record Record) (string, error) {
	appt, err := NewAppointment(ctx, record)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStore, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[appt.ID]; ok {
		return appt.ID, ErrAlreadyStored
	}
	s.items[appt.ID] = appt
	return appt.ID, nil
}

// Get returns a copy of the stored appointment.
func (s *InMemoryStore) Get(id string) (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.items[id]
	if !ok {
		return Appointment{}, false
	}
	return *appt, true
}

// List returns every stored appointment, oldest first.
func (s *InMemoryStore) List() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, 0, len(s.items))
	for _, appt := range s.items {
		out = append(out, *appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

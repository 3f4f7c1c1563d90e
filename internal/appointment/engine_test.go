package appointment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wolfman30/mediassist/internal/observability/metrics"
)

// Wednesday, 18 December 2024.
var engineNow = time.Date(2024, time.December, 18, 10, 30, 0, 0, time.UTC)

type recordingTranscript struct {
	turns []string
}

func (r *recordingTranscript) AppendAssistant(text string) {
	r.turns = append(r.turns, text)
}

type stubStore struct {
	inserts []Record
	err     error
}

func (s *stubStore) Insert(_ context.Context, record Record) (string, error) {
	s.inserts = append(s.inserts, record.Clone())
	if s.err != nil {
		return "", s.err
	}
	return "appt-1", nil
}

func newTestEngine(store Store, opts ...Option) *Engine {
	base := []Option{
		WithClock(func() time.Time { return engineNow }),
		WithLocation(time.UTC),
	}
	return NewEngine(store, append(base, opts...)...)
}

func run(t *testing.T, e *Engine, flow *Flow, tr Transcript, inputs ...string) Result {
	t.Helper()
	var res Result
	for _, in := range inputs {
		res = e.Handle(context.Background(), flow, tr, in)
		if !res.Handled {
			t.Fatalf("input %q was not handled by the engine", in)
		}
	}
	return res
}

func TestEngineFullBookingScenario(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(store)
	flow := &Flow{}
	tr := &recordingTranscript{}

	res := run(t, engine, flow, tr,
		"I want to book an appointment",
		"Jane Doe",
		"5551234",
		"jane@x.com",
		"12 Main St",
		"next monday",
		"10am",
	)
	if res.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("expected awaiting_confirmation, got %s", res.Phase)
	}
	if !strings.Contains(res.Reply, "Jane Doe") || !strings.Contains(res.Reply, "Monday, December 23, 2024") {
		t.Fatalf("summary is missing details: %q", res.Reply)
	}

	res = run(t, engine, flow, tr, "confirm")
	if res.Phase != PhaseConfirmed || res.AppointmentID != "appt-1" {
		t.Fatalf("expected confirmed result with id, got %+v", res)
	}
	if flow.Phase != PhaseIdle || len(flow.Record) != 0 {
		t.Fatalf("expected idle flow with empty record, got %+v", flow)
	}
	if len(store.inserts) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(store.inserts))
	}
	want := Record{
		SlotName:            "Jane Doe",
		SlotPhone:           "5551234",
		SlotEmail:           "jane@x.com",
		SlotAddress:         "12 Main St",
		SlotAppointmentDate: "2024-12-23",
		SlotAppointmentTime: "10:00",
	}
	for k, v := range want {
		if got := store.inserts[0][k]; got != v {
			t.Fatalf("inserted %s = %q, want %q", k, got, v)
		}
	}
	// one prompt per slot, the summary and the confirmation
	if len(tr.turns) != 8 {
		t.Fatalf("expected 8 assistant turns, got %d: %v", len(tr.turns), tr.turns)
	}
}

func TestEngineRequestsSlotsInOrder(t *testing.T) {
	engine := newTestEngine(&stubStore{})
	flow := &Flow{}
	inputs := []string{"appointment please", "Jane Doe", "5551234", "jane@x.com", "12 Main St", "tomorrow", "3pm"}
	wantSlots := []string{SlotName, SlotPhone, SlotEmail, SlotAddress, SlotAppointmentDate, SlotAppointmentTime, ""}

	for i, in := range inputs {
		res := engine.Handle(context.Background(), flow, nil, in)
		if res.Slot != wantSlots[i] {
			t.Fatalf("after %q expected slot %q, got %q", in, wantSlots[i], res.Slot)
		}
		if res.Slot != "" {
			idx := engine.index[res.Slot]
			for _, earlier := range engine.Slots()[:idx] {
				if !flow.Record.Filled(earlier.Name) {
					t.Fatalf("asked for %s before %s was filled", res.Slot, earlier.Name)
				}
			}
		}
	}
}

func TestEngineInvalidPhoneRepromptsWithoutAdvancing(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewChatMetrics(reg)
	engine := newTestEngine(&stubStore{}, WithMetrics(m))
	flow := &Flow{}
	tr := &recordingTranscript{}

	run(t, engine, flow, tr, "I want to book an appointment", "Jane Doe")
	res := run(t, engine, flow, tr, "abc")

	if res.Slot != SlotPhone || flow.Slot != SlotPhone {
		t.Fatalf("expected to stay on phone, got %q", flow.Slot)
	}
	if flow.Record.Filled(SlotPhone) {
		t.Fatalf("phone should not be recorded")
	}
	if !errors.Is(res.Err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", res.Err)
	}
	if res.Reply != engine.Slots()[1].Reprompt {
		t.Fatalf("expected phone re-prompt, got %q", res.Reply)
	}
	expected := `
# HELP mediassist_appointments_validation_errors_total Rejected slot values, by slot
# TYPE mediassist_appointments_validation_errors_total counter
mediassist_appointments_validation_errors_total{slot="phone"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "mediassist_appointments_validation_errors_total"); err != nil {
		t.Fatalf("unexpected validation metrics: %v", err)
	}

	res = run(t, engine, flow, tr, "5551234")
	if res.Slot != SlotEmail {
		t.Fatalf("expected email after valid phone, got %q", res.Slot)
	}
}

func TestEngineUnparseableDateReprompts(t *testing.T) {
	engine := newTestEngine(&stubStore{})
	flow := &Flow{}

	run(t, engine, flow, nil, "appointment", "Jane Doe", "5551234", "jane@x.com", "12 Main St")
	res := run(t, engine, flow, nil, "whenever suits")
	if res.Slot != SlotAppointmentDate {
		t.Fatalf("expected to stay on date, got %q", res.Slot)
	}
	if !strings.HasPrefix(res.Reply, "Sorry, I could not understand the date, please rephrase.") {
		t.Fatalf("unexpected date re-prompt %q", res.Reply)
	}
	for _, name := range []string{SlotName, SlotPhone, SlotEmail, SlotAddress} {
		if !flow.Record.Filled(name) {
			t.Fatalf("%s lost after a date rejection", name)
		}
	}
}

func TestEngineIdleIgnoresNonTriggers(t *testing.T) {
	engine := newTestEngine(&stubStore{})
	flow := &Flow{}
	tr := &recordingTranscript{}

	for _, in := range []string{"what are your opening hours?", "cancel", "yes"} {
		if res := engine.Handle(context.Background(), flow, tr, in); res.Handled {
			t.Fatalf("idle input %q should not be handled", in)
		}
	}
	if len(tr.turns) != 0 || flow.Phase != PhaseIdle {
		t.Fatalf("idle inputs should not change anything")
	}
}

func TestEngineCancellationClearsRecord(t *testing.T) {
	for _, phrase := range []string{"cancel", "Never mind", "please cancel that", "stop booking", "let's start over"} {
		t.Run(phrase, func(t *testing.T) {
			store := &stubStore{}
			engine := newTestEngine(store)
			flow := &Flow{}
			run(t, engine, flow, nil, "book a visit", "Jane Doe", "5551234")

			res := run(t, engine, flow, nil, phrase)
			if flow.Phase != PhaseIdle || len(flow.Record) != 0 {
				t.Fatalf("expected reset flow, got %+v", flow)
			}
			if res.Reply != cancelledText {
				t.Fatalf("unexpected reply %q", res.Reply)
			}
			if len(store.inserts) != 0 {
				t.Fatalf("cancellation must not insert")
			}
		})
	}
}

func TestEngineCancelPrefixedValuesFillSlots(t *testing.T) {
	store := NewInMemoryStore()
	engine := newTestEngine(store)
	flow := &Flow{}
	run(t, engine, flow, nil, "appointment", "Maria Cancela", "5551234", "cancelo@x.com")

	if flow.Phase != PhaseCollecting || flow.Slot != SlotAddress {
		t.Fatalf("expected to be collecting the address, got %+v", flow)
	}
	if flow.Record[SlotName] != "Maria Cancela" || flow.Record[SlotEmail] != "cancelo@x.com" {
		t.Fatalf("unexpected record %+v", flow.Record)
	}

	run(t, engine, flow, nil, "the cancellation please")
	if flow.Phase != PhaseIdle {
		t.Fatalf("explicit cancellation should still reset, got %+v", flow)
	}
}

func TestEngineRepeatedConfirmationStoresOnce(t *testing.T) {
	store := NewInMemoryStore()
	engine := newTestEngine(store)
	flow := &Flow{}
	run(t, engine, flow, nil, "appointment", "Jane Doe", "5551234", "jane@x.com", "12 Main St", "friday", "noon")
	if flow.BookingID == "" {
		t.Fatalf("expected a booking id once the summary is shown")
	}
	// the copy stands in for a session whose post-booking save was lost
	stale := *flow
	stale.Record = flow.Record.Clone()

	first := run(t, engine, flow, nil, "confirm")
	second := run(t, engine, &stale, nil, "confirm")
	if first.AppointmentID == "" || second.AppointmentID != first.AppointmentID {
		t.Fatalf("expected the same appointment id, got %q and %q", first.AppointmentID, second.AppointmentID)
	}
	if second.Phase != PhaseConfirmed || second.Err != nil {
		t.Fatalf("replayed confirmation should report confirmed, got %+v", second)
	}
	if got := len(store.List()); got != 1 {
		t.Fatalf("expected one stored appointment, got %d", got)
	}
}

func TestEngineAwaitingConfirmationReasksOnOtherInput(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(store)
	flow := &Flow{}
	run(t, engine, flow, nil, "appointment", "Jane Doe", "5551234", "jane@x.com", "12 Main St", "friday", "noon")

	for _, in := range []string{"hmm", "no", "not yet", "don't confirm"} {
		res := run(t, engine, flow, nil, in)
		if res.Phase != PhaseAwaitingConfirmation || res.Reply != reconfirmText {
			t.Fatalf("%q: expected re-ask, got %+v", in, res)
		}
	}
	if len(store.inserts) != 0 {
		t.Fatalf("expected no insert without confirmation")
	}
	if got := flow.Record[SlotAppointmentDate]; got != "2024-12-20" {
		t.Fatalf("friday resolved to %s", got)
	}
}

func TestEngineStoreFailureKeepsRecordForRetry(t *testing.T) {
	store := &stubStore{err: errors.New("db down")}
	engine := newTestEngine(store)
	flow := &Flow{}
	run(t, engine, flow, nil, "appointment", "Jane Doe", "5551234", "jane@x.com", "12 Main St", "today", "9:30")

	res := run(t, engine, flow, nil, "yes")
	if !errors.Is(res.Err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", res.Err)
	}
	if flow.Phase != PhaseAwaitingConfirmation || len(flow.Record) != 6 {
		t.Fatalf("record should be kept for retry, got %+v", flow)
	}
	if res.Reply != storeFailureText {
		t.Fatalf("unexpected reply %q", res.Reply)
	}

	store.err = nil
	res = run(t, engine, flow, nil, "ok")
	if res.Phase != PhaseConfirmed || flow.Phase != PhaseIdle {
		t.Fatalf("expected retry to confirm, got %+v", res)
	}
	if len(store.inserts) != 2 {
		t.Fatalf("expected one insert per confirmation, got %d", len(store.inserts))
	}
}

func TestEngineResetIsIdempotent(t *testing.T) {
	store := &stubStore{}
	engine := newTestEngine(store)
	flow := &Flow{}
	run(t, engine, flow, nil, "appointment", "Jane Doe", "5551234", "jane@x.com", "12 Main St", "tomorrow", "3pm", "yes")

	// a further confirmation in idle must not insert again
	if res := engine.Handle(context.Background(), flow, nil, "yes"); res.Handled {
		t.Fatalf("idle confirmation should not be handled")
	}
	res := run(t, engine, flow, nil, "I need another appointment")
	if res.Slot != SlotName || len(flow.Record) != 0 {
		t.Fatalf("expected fresh collection from name, got %+v", flow)
	}
	if len(store.inserts) != 1 {
		t.Fatalf("expected a single insert, got %d", len(store.inserts))
	}
}

func TestEngineCustomSlots(t *testing.T) {
	slots := DefaultSlots(SlotOptions{})[:2]
	store := &stubStore{}
	engine := newTestEngine(store, WithSlots(slots))
	flow := &Flow{}

	res := run(t, engine, flow, nil, "appointment", "Jane", "5551234")
	if res.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("expected confirmation after two slots, got %s", res.Phase)
	}
	// the store still rejects a record missing the default slots
	inMemory := NewInMemoryStore()
	if _, err := inMemory.Insert(context.Background(), flow.Record); !errors.Is(err, ErrIncompleteRecord) {
		t.Fatalf("expected ErrIncompleteRecord, got %v", err)
	}
}

func TestFlowState(t *testing.T) {
	tests := []struct {
		flow Flow
		want string
	}{
		{Flow{}, "idle"},
		{Flow{Phase: PhaseCollecting, Slot: SlotPhone}, "collecting(phone)"},
		{Flow{Phase: PhaseAwaitingConfirmation}, "awaiting_confirmation"},
	}
	for _, tt := range tests {
		if got := tt.flow.State(); got != tt.want {
			t.Fatalf("State() = %q, want %q", got, tt.want)
		}
	}
}

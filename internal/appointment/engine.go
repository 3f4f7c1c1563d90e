// Package appointment runs the appointment booking dialogue: it collects the
// patient's details slot by slot, validates them, asks for confirmation and
// hands the finished record to a Store.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/mediassist/internal/observability/metrics"
	"github.com/wolfman30/mediassist/pkg/logging"
)

const (
	cancelledText    = "No problem, I've cancelled the appointment booking. Let me know if there is anything else I can help with."
	reconfirmText    = "Would you like to confirm the appointment? Reply \"confirm\" to book it or \"cancel\" to stop."
	storeFailureText = "Sorry, I couldn't save your appointment right now. Your details are kept, so reply \"confirm\" to try again."
)

var (
	triggerPhrases = []string{"appointment", "book a visit", "schedule a visit"}
	cancelPhrases  = []string{"never mind", "nevermind", "stop booking", "start over"}
	cancelWords    = map[string]bool{
		"cancel": true, "cancelled": true, "canceled": true, "cancelling": true,
		"canceling": true, "cancellation": true,
	}

	wordRe = regexp.MustCompile(`[a-z']+`)

	affirmativeWords = map[string]bool{
		"confirm": true, "confirmed": true, "yes": true, "yep": true, "yeah": true,
		"sure": true, "ok": true, "okay": true, "correct": true,
	}
	negativeWords = map[string]bool{
		"no": true, "not": true, "don't": true, "dont": true, "nope": true, "wait": true,
	}
)

// Transcript receives the texts the engine emits.
type Transcript interface {
	AppendAssistant(text string)
}

// Result describes what the engine did with one input.
type Result struct {
	// Handled is false when the input was not part of a booking and should go
	// to the chat backend instead.
	Handled       bool
	Reply         string
	Phase         Phase
	Slot          string
	AppointmentID string
	// Err carries the validation or storage failure behind a re-prompt.
	Err error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the clinic time zone relative dates are resolved in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithSlots replaces the default slot list.
func WithSlots(slots []SlotSpec) Option {
	return func(e *Engine) {
		if len(slots) > 0 {
			e.slots = slots
		}
	}
}

// WithMetrics records booking outcomes and validation failures.
func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine drives a Flow through the ordered slot list. It holds no per-session
// state and is safe for concurrent use; each Flow must only be handled by one
// goroutine at a time.
type Engine struct {
	store   Store
	slots   []SlotSpec
	index   map[string]int
	now     func() time.Time
	loc     *time.Location
	metrics *metrics.ChatMetrics
	logger  *logging.Logger
}

// NewEngine builds an engine persisting confirmed appointments to store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		slots:  DefaultSlots(SlotOptions{}),
		now:    time.Now,
		loc:    time.Local,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.index = make(map[string]int, len(e.slots))
	for i, s := range e.slots {
		e.index[s.Name] = i
	}
	return e
}

// Slots returns the configured slot list.
func (e *Engine) Slots() []SlotSpec {
	return e.slots
}

// Handle feeds one user input to the flow. Every reply is also appended to
// transcript as an assistant turn.
func (e *Engine) Handle(ctx context.Context, flow *Flow, transcript Transcript, input string) Result {
	if flow.Phase == "" {
		flow.Phase = PhaseIdle
	}
	text := strings.ToLower(strings.TrimSpace(input))

	if flow.Active() && isCancellation(text) {
		flow.Reset()
		e.metrics.ObserveAppointment("cancelled")
		return e.emit(flow, transcript, Result{Handled: true, Reply: cancelledText})
	}

	switch flow.Phase {
	case PhaseCollecting:
		return e.collect(flow, transcript, input)
	case PhaseAwaitingConfirmation:
		return e.confirm(ctx, flow, transcript, text)
	default:
		if !isTrigger(text) {
			return Result{Handled: false, Phase: PhaseIdle}
		}
		flow.Phase = PhaseCollecting
		flow.Slot = e.slots[0].Name
		flow.Record = Record{}
		e.metrics.ObserveAppointment("started")
		return e.emit(flow, transcript, Result{Handled: true, Reply: e.slots[0].Prompt})
	}
}

func (e *Engine) collect(flow *Flow, transcript Transcript, input string) Result {
	i, ok := e.index[flow.Slot]
	if !ok {
		// unknown slot from a stale session; resume at the first gap
		i = e.firstMissing(flow.Record)
		flow.Slot = e.slots[i].Name
	}
	spec := e.slots[i]

	value, err := spec.Normalize(input, e.now().In(e.loc))
	if err != nil {
		e.metrics.ObserveValidationError(spec.Name)
		e.logger.Debug("appointment slot rejected", "slot", spec.Name, "error", err)
		return e.emit(flow, transcript, Result{Handled: true, Reply: spec.Reprompt, Err: err})
	}
	if flow.Record == nil {
		flow.Record = Record{}
	}
	flow.Record[spec.Name] = value

	if next := e.firstMissing(flow.Record); next < len(e.slots) {
		flow.Slot = e.slots[next].Name
		return e.emit(flow, transcript, Result{Handled: true, Reply: e.slots[next].Prompt})
	}
	flow.Phase = PhaseAwaitingConfirmation
	flow.Slot = ""
	if flow.BookingID == "" {
		flow.BookingID = uuid.New().String()
	}
	return e.emit(flow, transcript, Result{Handled: true, Reply: e.Summary(flow.Record)})
}

func (e *Engine) confirm(ctx context.Context, flow *Flow, transcript Transcript, text string) Result {
	if !isAffirmative(text) {
		return e.emit(flow, transcript, Result{Handled: true, Reply: reconfirmText})
	}
	if missing := e.firstMissing(flow.Record); missing < len(e.slots) {
		// a record that lost a slot goes back to collecting it
		flow.Phase = PhaseCollecting
		flow.Slot = e.slots[missing].Name
		return e.emit(flow, transcript, Result{Handled: true, Reply: e.slots[missing].Prompt, Err: ErrIncompleteRecord})
	}

	if flow.BookingID == "" {
		flow.BookingID = uuid.New().String()
	}
	record := flow.Record.Clone()
	id, err := e.store.Insert(WithAppointmentID(ctx, flow.BookingID), record)
	switch {
	case errors.Is(err, ErrAlreadyStored):
		e.metrics.ObserveAppointment("duplicate")
		e.logger.Warn("appointment confirmed again, keeping the stored booking", "appointment_id", id)
	case err != nil:
		if !errors.Is(err, ErrStore) {
			err = fmt.Errorf("%w: %w", ErrStore, err)
		}
		e.metrics.ObserveAppointment("store_failed")
		e.logger.Error("failed to store appointment", "error", err)
		return e.emit(flow, transcript, Result{Handled: true, Reply: storeFailureText, Err: err})
	default:
		e.metrics.ObserveAppointment("stored")
		e.logger.Info("appointment booked", "appointment_id", id)
	}

	reply := e.Confirmation(record, id)
	flow.Reset()
	res := e.emit(flow, transcript, Result{Handled: true, Reply: reply, AppointmentID: id})
	res.Phase = PhaseConfirmed
	return res
}

func (e *Engine) emit(flow *Flow, transcript Transcript, res Result) Result {
	if transcript != nil && res.Reply != "" {
		transcript.AppendAssistant(res.Reply)
	}
	res.Phase = flow.Phase
	res.Slot = flow.Slot
	return res
}

func (e *Engine) firstMissing(r Record) int {
	for i, s := range e.slots {
		if !r.Filled(s.Name) {
			return i
		}
	}
	return len(e.slots)
}

// Summary lists every collected slot and asks for confirmation.
func (e *Engine) Summary(r Record) string {
	var b strings.Builder
	b.WriteString("Here are the details you provided:\n")
	e.writeDetails(&b, r)
	b.WriteString(reconfirmText)
	return b.String()
}

// Confirmation is the text shown once the appointment is stored.
func (e *Engine) Confirmation(r Record, id string) string {
	var b strings.Builder
	b.WriteString("Your appointment is confirmed with the following details:\n")
	e.writeDetails(&b, r)
	if id != "" {
		fmt.Fprintf(&b, "Reference: %s\n", id)
	}
	b.WriteString("Thank you! We look forward to seeing you.")
	return b.String()
}

func (e *Engine) writeDetails(b *strings.Builder, r Record) {
	for _, s := range e.slots {
		v := r[s.Name]
		if s.Format != nil {
			v = s.Format(v)
		}
		fmt.Fprintf(b, "- %s: %s\n", s.Label, v)
	}
}

func isTrigger(text string) bool {
	for _, p := range triggerPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func isCancellation(text string) bool {
	for _, p := range cancelPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, w := range wordRe.FindAllString(text, -1) {
		if cancelWords[w] {
			return true
		}
	}
	return false
}

func isAffirmative(text string) bool {
	affirmed := false
	for _, w := range wordRe.FindAllString(text, -1) {
		if negativeWords[w] {
			return false
		}
		if affirmativeWords[w] {
			affirmed = true
		}
	}
	return affirmed
}

package appointment

// Phase is the position of a session in the booking dialogue.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCollecting           Phase = "collecting"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseConfirmed            Phase = "confirmed"
)

// Record maps slot names to their accepted values.
type Record map[string]string

// Filled reports whether slot holds a value.
func (r Record) Filled(slot string) bool {
	_, ok := r[slot]
	return ok
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Flow is the dialogue state owned by a single session: the phase, the slot
// being asked for while collecting, and the values gathered so far.
type Flow struct {
	Phase  Phase  `json:"phase"`
	Slot   string `json:"slot,omitempty"`
	Record Record `json:"record,omitempty"`
	// BookingID is the id the record will be stored under. It is fixed when
	// the summary is shown so a repeated confirmation stores nothing new.
	BookingID string `json:"booking_id,omitempty"`
}

// Active reports whether a booking is in progress.
func (f *Flow) Active() bool {
	return f.Phase == PhaseCollecting || f.Phase == PhaseAwaitingConfirmation
}

// Reset clears the record and returns to idle.
func (f *Flow) Reset() {
	f.Phase = PhaseIdle
	f.Slot = ""
	f.Record = nil
	f.BookingID = ""
}

// State renders the phase the way it is reported to clients, e.g.
// "collecting(phone)".
func (f *Flow) State() string {
	switch f.Phase {
	case "":
		return string(PhaseIdle)
	case PhaseCollecting:
		return string(PhaseCollecting) + "(" + f.Slot + ")"
	default:
		return string(f.Phase)
	}
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Routes a user turn can take through the assistant.
const (
	RouteDialogue = "dialogue"
	RouteBackend  = "backend"
)

// ChatMetrics exposes counters/histograms for chat and booking flows.
type ChatMetrics struct {
	turnsTotal       *prometheus.CounterVec
	backendFailures  prometheus.Counter
	backendLatency   prometheus.Histogram
	appointments     *prometheus.CounterVec
	documents        *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediassist",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "User turns processed, by route",
		}, []string{"route"}),
		backendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediassist",
			Subsystem: "chat",
			Name:      "backend_failures_total",
			Help:      "Chat backend calls that failed",
		}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mediassist",
			Subsystem: "chat",
			Name:      "backend_latency_seconds",
			Help:      "Latency of chat backend completions",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		appointments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediassist",
			Subsystem: "appointments",
			Name:      "total",
			Help:      "Appointment flow outcomes",
		}, []string{"status"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediassist",
			Subsystem: "documents",
			Name:      "total",
			Help:      "Uploaded documents, by extraction status",
		}, []string{"status"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediassist",
			Subsystem: "appointments",
			Name:      "validation_errors_total",
			Help:      "Rejected slot values, by slot",
		}, []string{"slot"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.backendFailures, m.backendLatency, m.appointments, m.documents, m.validationErrors)
	return m
}

func (m *ChatMetrics) ObserveTurn(route string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(route).Inc()
}

func (m *ChatMetrics) ObserveBackend(seconds float64, err error) {
	if m == nil {
		return
	}
	m.backendLatency.Observe(seconds)
	if err != nil {
		m.backendFailures.Inc()
	}
}

// ObserveAppointment records a flow outcome: started, stored, duplicate, store_failed
// or cancelled.
func (m *ChatMetrics) ObserveAppointment(status string) {
	if m == nil {
		return
	}
	m.appointments.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveDocument(status string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveValidationError(slot string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(slot).Inc()
}

package form

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments an engine. All collectors are optional: a nil
// *Metrics disables instrumentation entirely.
type Metrics struct {
	// ChecksTotal counts completed check passes.
	ChecksTotal prometheus.Counter

	// ChecksAborted counts passes aborted by an evaluation or
	// assignment error.
	ChecksAborted prometheus.Counter

	// EventsTotal counts emitted change events by type.
	EventsTotal *prometheus.CounterVec

	// ActiveSubscriptions tracks live async-source subscription slots.
	ActiveSubscriptions prometheus.Gauge
}

// NewMetrics builds engine metrics registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldflow",
			Name:      "check_passes_total",
			Help:      "Completed recomputation passes.",
		}),
		ChecksAborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldflow",
			Name:      "check_passes_aborted_total",
			Help:      "Recomputation passes aborted by an error.",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldflow",
			Name:      "change_events_total",
			Help:      "Emitted change events.",
		}, []string{"type"}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fieldflow",
			Name:      "active_subscriptions",
			Help:      "Live async expression subscriptions.",
		}),
	}
}

func (m *Metrics) passDone() {
	if m != nil {
		m.ChecksTotal.Inc()
	}
}

func (m *Metrics) passAborted() {
	if m != nil {
		m.ChecksAborted.Inc()
	}
}

func (m *Metrics) eventEmitted(eventType EventType) {
	if m != nil {
		m.EventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

func (m *Metrics) subscriptions(count int) {
	if m != nil {
		m.ActiveSubscriptions.Set(float64(count))
	}
}

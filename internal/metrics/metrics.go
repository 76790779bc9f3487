package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's prometheus instruments. All observation
// methods are nil-safe so wiring them is optional in tests.
type Metrics struct {
	readingsProcessed *prometheus.CounterVec
	readingsRejected  prometheus.Counter
	anomaliesFlagged  prometheus.Counter
	autoShutoffs      prometheus.Counter
	notificationsSent prometheus.Counter
}

// New creates and registers the engine metrics
func New() *Metrics {
	m := &Metrics{
		readingsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterflow_readings_processed_total",
			Help: "Total readings normalized and persisted, by ingest source.",
		}, []string{"source"}),
		readingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterflow_readings_rejected_total",
			Help: "Total readings rejected before persistence.",
		}),
		anomaliesFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterflow_anomalies_flagged_total",
			Help: "Total readings persisted with a spike anomaly flag.",
		}),
		autoShutoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterflow_auto_shutoffs_total",
			Help: "Total automatic flow shutoffs.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterflow_notifications_dispatched_total",
			Help: "Total goal-exceeded notification dispatches.",
		}),
	}

	prometheus.MustRegister(
		m.readingsProcessed,
		m.readingsRejected,
		m.anomaliesFlagged,
		m.autoShutoffs,
		m.notificationsSent,
	)

	return m
}

// Handler returns the scrape endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// ReadingProcessed counts a persisted reading by source ("http" or "amqp")
func (m *Metrics) ReadingProcessed(source string) {
	if m == nil {
		return
	}
	m.readingsProcessed.WithLabelValues(source).Inc()
}

// ReadingRejected counts a validation rejection
func (m *Metrics) ReadingRejected() {
	if m == nil {
		return
	}
	m.readingsRejected.Inc()
}

// AnomalyFlagged counts a reading persisted with a spike flag
func (m *Metrics) AnomalyFlagged() {
	if m == nil {
		return
	}
	m.anomaliesFlagged.Inc()
}

// AutoShutoff counts an automatic shutoff transition
func (m *Metrics) AutoShutoff() {
	if m == nil {
		return
	}
	m.autoShutoffs.Inc()
}

// NotificationDispatched counts a notification dispatch
func (m *Metrics) NotificationDispatched() {
	if m == nil {
		return
	}
	m.notificationsSent.Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	RecordMutations *prometheus.CounterVec
	Loads           *prometheus.CounterVec
	LoadDuration    prometheus.Histogram
	LoadedRecords   prometheus.Histogram

	// Persistence metrics
	PersistenceRetries *prometheus.CounterVec

	// Event metrics
	EventsPublished *prometheus.CounterVec

	// Authentication metrics
	AuthAttempts   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		RecordMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goexpense_record_mutations_total",
				Help: "Total record mutations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		Loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goexpense_ledger_loads_total",
				Help: "Total ledger loads by outcome",
			},
			[]string{"status"},
		),
		LoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "goexpense_ledger_load_duration_seconds",
			Help:    "Duration of ledger loads",
			Buckets: prometheus.DefBuckets,
		}),
		LoadedRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "goexpense_ledger_loaded_records",
			Help:    "Number of records returned by a ledger load",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000},
		}),

		// Persistence metrics
		PersistenceRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goexpense_persistence_retries_total",
				Help: "Total retried persistence calls by operation",
			},
			[]string{"operation"},
		),

		// Event metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goexpense_events_published_total",
				Help: "Total record events published by type and outcome",
			},
			[]string{"type", "status"},
		),

		// Authentication metrics
		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goexpense_auth_attempts_total",
				Help: "Total authentication attempts",
			},
			[]string{"status"},
		),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "goexpense_active_sessions",
			Help: "Current number of open ledger sessions",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "goexpense_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}

// ObserveLoad records a ledger load.
func (m *Metrics) ObserveLoad(duration time.Duration, records int, err error) {
	m.Loads.WithLabelValues(status(err)).Inc()
	m.LoadDuration.Observe(duration.Seconds())
	if err == nil {
		m.LoadedRecords.Observe(float64(records))
	}
}

// ObserveMutation records an add, update or delete.
func (m *Metrics) ObserveMutation(op string, err error) {
	m.RecordMutations.WithLabelValues(op, status(err)).Inc()
}

// ObserveRetry records a retried persistence call.
func (m *Metrics) ObserveRetry(op string) {
	m.PersistenceRetries.WithLabelValues(op).Inc()
}

// ObservePublish records a published record event.
func (m *Metrics) ObservePublish(eventType string, err error) {
	m.EventsPublished.WithLabelValues(eventType, status(err)).Inc()
}

// ObserveAuth records a sign-in attempt.
func (m *Metrics) ObserveAuth(err error) {
	m.AuthAttempts.WithLabelValues(status(err)).Inc()
}

// SetActiveSessions reports the number of open sessions.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// ObserveRateLimited records a rejected request.
func (m *Metrics) ObserveRateLimited() {
	m.RateLimitHits.Inc()
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}

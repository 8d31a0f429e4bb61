// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventreg"

// Registry holds every metric the service exports.
var Registry = prometheus.NewRegistry()

var (
	// RegistrationAttempts counts register calls by outcome
	// (success, full, duplicate, past_event, not_found, invalid, error).
	RegistrationAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_attempts_total",
			Help:      "Total number of event registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Cancellations counts cancel calls by outcome.
	Cancellations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_cancellations_total",
			Help:      "Total number of registration cancellations by outcome",
		},
		[]string{"outcome"},
	)

	// EventsCreated counts successfully created events.
	EventsCreated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_created_total",
			Help:      "Total number of events created",
		},
	)

	// UsersCreated counts successfully registered users.
	UsersCreated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Total number of users registered",
		},
	)

	// DBQueryDuration records database operation latency
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// DBErrors counts failed database operations
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

var initOnce sync.Once

// Init registers the Go runtime and process collectors. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordQuery records latency and failures for a database operation.
// Pass errors that represent expected business outcomes as nil.
//
//	start := time.Now()
//	defer func() { metrics.RecordQuery("register", start, err) }()
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	errorType := "query_error"
	switch {
	case errors.Is(err, context.Canceled):
		errorType = "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		errorType = "timeout"
	}
	DBErrors.WithLabelValues(operation, errorType).Inc()
}

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Claim metrics
	claimTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_transitions_total",
			Help: "Total number of applied claim status transitions",
		},
		[]string{"flow", "operation", "from_status", "to_status"},
	)

	claimTransitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_transitions_rejected_total",
			Help: "Total number of transitions refused by a status guard",
		},
		[]string{"flow", "operation", "status"},
	)

	invoiceValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_invoice_validations_total",
			Help: "Invoice validation outcomes",
		},
		[]string{"flow", "outcome"},
	)

	deductibleApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claim_deductible_applied_amount_total",
			Help: "Sum of deductible amounts subtracted from enterprise claim items",
		},
	)

	deductibleReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claim_deductible_released_amount_total",
			Help: "Deductible given back by canceled or deleted enterprise claims",
		},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_reconciliations_total",
			Help: "Deductible reconciliations by result",
		},
		[]string{"result"},
	)

	reconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claim_reconciliation_duration_seconds",
			Help:    "Time spent inside the deductible critical section",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_events_published_total",
			Help: "Claim domain events handed to the event bus",
		},
		[]string{"type", "result"},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of claim audit entries stored",
		},
	)

	hospitalLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospital_level_lookups_total",
			Help: "Hospital level lookups against the hospital information system",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath replaces UUID segments so claim IDs do not become label values
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if _, err := uuid.Parse(s); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

// --- Claim metric helpers ---

// RecordTransition records an applied status transition
func RecordTransition(flow, operation, fromStatus, toStatus string) {
	claimTransitions.WithLabelValues(flow, operation, fromStatus, toStatus).Inc()
}

// RecordTransitionRejected records a transition refused by a guard
func RecordTransitionRejected(flow, operation, status string) {
	claimTransitionsRejected.WithLabelValues(flow, operation, status).Inc()
}

// RecordInvoiceValidation adds count invoices with the given outcome
func RecordInvoiceValidation(flow, outcome string, count int) {
	if count <= 0 {
		return
	}
	invoiceValidations.WithLabelValues(flow, outcome).Add(float64(count))
}

// RecordReconciliation records one deductible reconciliation
func RecordReconciliation(result string, applied float64, duration time.Duration) {
	reconciliations.WithLabelValues(result).Inc()
	reconciliationDuration.Observe(duration.Seconds())
	if applied > 0 {
		deductibleApplied.Add(applied)
	}
}

// RecordDeductibleReleased records ledger entries dropped for a closed claim
func RecordDeductibleReleased(released float64) {
	reconciliations.WithLabelValues("released").Inc()
	if released > 0 {
		deductibleReleased.Add(released)
	}
}

// RecordEventPublished records a publish attempt
func RecordEventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}

// RecordHospitalLookup records a hospital directory lookup result
func RecordHospitalLookup(result string) {
	hospitalLookups.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the registration pipeline.
// All methods are safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	OTPIssued           prometheus.Counter
	OTPVerifyFailed     prometheus.Counter
	ClaimsSubmitted     prometheus.Counter
	RegistrationsTotal  prometheus.Counter
	SubmissionsRejected *prometheus.CounterVec
	SyncFailures        *prometheus.CounterVec
	SubmitDuration      prometheus.Histogram
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		OTPIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_otp_issued_total",
			Help: "Total number of OTP codes issued",
		}),
		OTPVerifyFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_otp_verify_failed_total",
			Help: "Total number of failed OTP verifications",
		}),
		ClaimsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_payment_claims_total",
			Help: "Total number of UPI payment claims recorded",
		}),
		RegistrationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "registration_registrations_created_total",
			Help: "Total number of registration records persisted",
		}),
		SubmissionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_submissions_rejected_total",
			Help: "Registration submissions rejected, by reason",
		}, []string{"reason"}),
		SyncFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_remote_sync_failures_total",
			Help: "Remote spreadsheet sync failures, by operation",
		}, []string{"operation"}),
		SubmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registration_submit_duration_seconds",
			Help:    "Duration of registration submissions that reached persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncOTPIssued() {
	if m != nil {
		m.OTPIssued.Inc()
	}
}

func (m *Metrics) IncOTPVerifyFailed() {
	if m != nil {
		m.OTPVerifyFailed.Inc()
	}
}

func (m *Metrics) IncClaimsSubmitted() {
	if m != nil {
		m.ClaimsSubmitted.Inc()
	}
}

func (m *Metrics) IncRegistrations() {
	if m != nil {
		m.RegistrationsTotal.Inc()
	}
}

// IncRejected records a rejected submission; reason is "validation", "conflict" or "persistence".
func (m *Metrics) IncRejected(reason string) {
	if m != nil {
		m.SubmissionsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncSyncFailure(operation string) {
	if m != nil {
		m.SyncFailures.WithLabelValues(operation).Inc()
	}
}

// ObserveSubmit records the duration of a submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m != nil {
		m.SubmitDuration.Observe(time.Since(start).Seconds())
	}
}

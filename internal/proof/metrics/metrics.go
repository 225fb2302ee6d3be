// Package metrics provides Prometheus metrics for proof orchestration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all proof orchestration metrics.
type Metrics struct {
	// Lifecycle outcomes
	InitsTotal        *prometheus.CounterVec // Proof inits by result (success, fallback, no-verification-needed, error)
	FallbacksTotal    *prometheus.CounterVec // Fallback activations by reason (url_error, circuit_open)
	StatusTotal       *prometheus.CounterVec // Status responses by client status
	SessionsExpired   prometheus.Counter     // Sessions removed by the cleanup worker
	CircuitOpenEvents prometheus.Counter     // URL-issuance circuit transitions to open

	// Latency
	VerifierCallDuration *prometheus.HistogramVec // Verifier call latency by operation and outcome
	StoreOpDuration      *prometheus.HistogramVec // Session store latency by operation

	// QR cache
	QRCacheHits    prometheus.Counter
	QRCacheMisses  prometheus.Counter
	QRCacheEntries prometheus.Gauge
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "formproof_proof_inits_total",
			Help: "Total number of proof initialisations by result",
		}, []string{"result"}),

		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "formproof_proof_fallbacks_total",
			Help: "Total number of fallback URL activations by reason",
		}, []string{"reason"}),

		StatusTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "formproof_proof_status_total",
			Help: "Total number of proof status responses by status",
		}, []string{"status"}),

		SessionsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "formproof_proof_sessions_expired_total",
			Help: "Total number of expired proof sessions removed by cleanup",
		}),

		CircuitOpenEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "formproof_proof_url_circuit_open_total",
			Help: "Total number of times the URL-issuance circuit opened",
		}),

		VerifierCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formproof_verifier_call_duration_seconds",
			Help:    "Duration of verifier calls by operation and outcome",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),

		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formproof_proof_store_duration_seconds",
			Help:    "Duration of proof session store operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}, []string{"operation"}),

		QRCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "formproof_qr_cache_hits_total",
			Help: "Total number of QR cache hits",
		}),

		QRCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "formproof_qr_cache_misses_total",
			Help: "Total number of QR cache misses",
		}),

		QRCacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "formproof_qr_cache_entries",
			Help: "Current number of cached QR codes",
		}),
	}
}

// RecordInit records a proof init result.
func (m *Metrics) RecordInit(result string) {
	m.InitsTotal.WithLabelValues(result).Inc()
}

// RecordFallback records a fallback activation.
func (m *Metrics) RecordFallback(reason string) {
	m.FallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordStatus records a status response.
func (m *Metrics) RecordStatus(status string) {
	m.StatusTotal.WithLabelValues(status).Inc()
}

// RecordCircuitOpen records the URL circuit opening.
func (m *Metrics) RecordCircuitOpen() {
	m.CircuitOpenEvents.Inc()
}

// AddSessionsExpired records sessions removed by cleanup.
func (m *Metrics) AddSessionsExpired(n int) {
	m.SessionsExpired.Add(float64(n))
}

// ObserveVerifierCall records the duration of one verifier call.
func (m *Metrics) ObserveVerifierCall(operation string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.VerifierCallDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// ObserveStoreOp records the duration of a store operation.
func (m *Metrics) ObserveStoreOp(operation string, d time.Duration) {
	m.StoreOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordQRCacheHit records a QR cache hit.
func (m *Metrics) RecordQRCacheHit() {
	m.QRCacheHits.Inc()
}

// RecordQRCacheMiss records a QR cache miss.
func (m *Metrics) RecordQRCacheMiss() {
	m.QRCacheMisses.Inc()
}

// SetQRCacheEntries updates the QR cache size gauge.
func (m *Metrics) SetQRCacheEntries(n int) {
	m.QRCacheEntries.Set(float64(n))
}

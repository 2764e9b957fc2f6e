package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// attestationMetrics holds Prometheus metrics for attestation submissions.
type attestationMetrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	attestationMetricsInstance *attestationMetrics
	attestationMetricsOnce     sync.Once
	attestationRegistry        = prometheus.DefaultRegisterer
)

func getAttestationMetrics() *attestationMetrics {
	attestationMetricsOnce.Do(func() {
		attestationMetricsInstance = &attestationMetrics{
			submissions: promauto.With(attestationRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "feedback_attestations_total",
				Help: "Attestation submissions by feedback category and outcome",
			}, []string{"category", "outcome"}),
			duration: promauto.With(attestationRegistry).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "feedback_attestation_duration_seconds",
				Help:    "Time from account request to confirmed attestation",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			}, []string{"outcome"}),
		}
	})
	return attestationMetricsInstance
}

// resetAttestationMetricsForTesting swaps in a fresh registry for test isolation.
func resetAttestationMetricsForTesting() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	attestationRegistry = reg
	attestationMetricsOnce = sync.Once{}
	attestationMetricsInstance = nil
	return reg
}

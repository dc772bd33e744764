package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document handling and proof verification.
type Metrics struct {
	// Verification outcomes by attestation and result
	VerifyOutcome *prometheus.CounterVec

	// Batched configuration issues by kind
	ConfigIssues *prometheus.CounterVec

	// Latency of registry, policy and proof verifier calls
	ExternalLatency *prometheus.HistogramVec

	// Overall Verify latency
	VerifyLatency prometheus.Histogram

	// Documents normalized or synthesized, by source and outcome
	DocumentsProcessed *prometheus.CounterVec
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		VerifyOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_verifier_verifications_total",
			Help: "Total verifications by attestation id and outcome",
		}, []string{"attestation_id", "outcome"}), // outcome: "valid", "invalid_proof", "config_mismatch", "error"

		ConfigIssues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_verifier_config_issues_total",
			Help: "Total configuration issues reported, by kind",
		}, []string{"kind"}),

		ExternalLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credential_verifier_external_call_duration_seconds",
			Help:    "Duration of external calls by target",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"target"}), // target: "registry", "policy", "proof_verifier"

		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credential_verifier_verify_duration_seconds",
			Help:    "Duration of a full verification",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		DocumentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_verifier_documents_total",
			Help: "Total documents handled by source and outcome",
		}, []string{"source", "outcome"}),
	}
}

// IncrementOutcome records the result of one verification.
func (m *Metrics) IncrementOutcome(attestationID, outcome string) {
	if m != nil {
		m.VerifyOutcome.WithLabelValues(attestationID, outcome).Inc()
	}
}

func (m *Metrics) IncrementIssue(kind string) {
	if m != nil {
		m.ConfigIssues.WithLabelValues(kind).Inc()
	}
}

// ObserveExternalLatency records the duration of a call to an external collaborator.
func (m *Metrics) ObserveExternalLatency(target string, d time.Duration) {
	if m != nil {
		m.ExternalLatency.WithLabelValues(target).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

// IncrementDocument records a document handled from source ("ios", "android",
// "chip", "synthesized").
func (m *Metrics) IncrementDocument(source, outcome string) {
	if m != nil {
		m.DocumentsProcessed.WithLabelValues(source, outcome).Inc()
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordOnOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementOutcome("1", "valid")
	m.IncrementOutcome("1", "valid")
	m.IncrementIssue("InvalidScope")
	m.IncrementDocument("ios", "ok")
	m.ObserveExternalLatency("registry", 20*time.Millisecond)
	m.ObserveVerifyLatency(50 * time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.VerifyOutcome.WithLabelValues("1", "valid")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ConfigIssues.WithLabelValues("InvalidScope")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.DocumentsProcessed.WithLabelValues("ios", "ok")))
	require.Equal(t, 1, testutil.CollectAndCount(m.ExternalLatency))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.IncrementOutcome("1", "valid")
		m.IncrementIssue("InvalidId")
		m.ObserveExternalLatency("policy", time.Second)
		m.ObserveVerifyLatency(time.Second)
		m.IncrementDocument("chip", "error")
	})
}

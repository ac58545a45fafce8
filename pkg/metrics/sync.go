package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records reconciliation pass outcomes.
type SyncMetrics struct {
	duration    *prometheus.HistogramVec
	adjustments prometheus.Counter
	skips       *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_pass_duration_seconds",
		Help:    "Duration of stock-event reconciliation passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	adjustments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_adjustments_total",
		Help: "Inventory adjustments issued by bundle reconciliation.",
	})
	skips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_skips_total",
		Help: "Reconciliation skips by reason.",
	}, []string{"reason"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_failures_total",
		Help: "Per-bundle reconciliation failures by stage.",
	}, []string{"stage"})
	reg.MustRegister(duration, adjustments, skips, failures)
	return &SyncMetrics{
		duration:    duration,
		adjustments: adjustments,
		skips:       skips,
		failures:    failures,
	}
}

// ObserveDuration records the duration of one pass for the named source.
func (m *SyncMetrics) ObserveDuration(source string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(source)).Observe(duration.Seconds())
}

// AddAdjustments counts issued inventory adjustments.
func (m *SyncMetrics) AddAdjustments(n int) {
	if m == nil || m.adjustments == nil || n <= 0 {
		return
	}
	m.adjustments.Add(float64(n))
}

// IncSkip counts a skip with the given reason.
func (m *SyncMetrics) IncSkip(reason string) {
	if m == nil || m.skips == nil {
		return
	}
	m.skips.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncFailure counts a per-bundle failure at the given stage.
func (m *SyncMetrics) IncFailure(stage string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

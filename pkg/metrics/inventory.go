package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger operation outcomes.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// LedgerMetrics counts stock ledger mutations and the anomalies they surface.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	anomalies  *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_operations_total",
		Help: "Stock ledger operations by type and result.",
	}, []string{"operation", "result"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_version_conflicts_total",
		Help: "Optimistic version conflicts observed by the stock ledger.",
	}, []string{"operation"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_ledger_anomalies_total",
		Help: "Clamped stock mutations that indicate a caller bug.",
	}, []string{"operation"})
	reg.MustRegister(operations, conflicts, anomalies)
	return &LedgerMetrics{
		operations: operations,
		conflicts:  conflicts,
		anomalies:  anomalies,
	}
}

// ObserveOperation counts a finished ledger operation.
func (m *LedgerMetrics) ObserveOperation(operation, result string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

// IncConflict counts a lost optimistic update.
func (m *LedgerMetrics) IncConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncAnomaly counts a clamped mutation.
func (m *LedgerMetrics) IncAnomaly(operation string) {
	if m == nil || m.anomalies == nil {
		return
	}
	m.anomalies.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SyncMetrics tracks POS synchronization runs.
type SyncMetrics struct {
	runs     *prometheus.CounterVec
	lines    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSyncMetrics registers the POS sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_pos_sync_runs_total",
		Help: "POS sync runs by provider and result.",
	}, []string{"provider", "result"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_pos_sync_lines_total",
		Help: "POS snapshot lines by provider and outcome.",
	}, []string{"provider", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_pos_sync_duration_seconds",
		Help:    "Duration of a single location sync.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	reg.MustRegister(runs, lines, duration)
	return &SyncMetrics{
		runs:     runs,
		lines:    lines,
		duration: duration,
	}
}

// ObserveRun records the outcome and duration of one location sync.
func (m *SyncMetrics) ObserveRun(provider, result string, took time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	provider = normalizeLabel(provider)
	m.runs.WithLabelValues(provider, normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(provider).Observe(took.Seconds())
}

// AddLines counts applied or failed snapshot lines.
func (m *SyncMetrics) AddLines(provider, outcome string, n int) {
	if m == nil || m.lines == nil || n <= 0 {
		return
	}
	m.lines.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Add(float64(n))
}

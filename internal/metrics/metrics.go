// Package metrics exposes Prometheus collectors for the persistence core. A
// nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	entityOps       *prometheus.CounterVec
	corruptEntities *prometheus.CounterVec
	readFallbacks   *prometheus.CounterVec
	tombstones      *prometheus.GaugeVec
	restored        *prometheus.CounterVec
	restoreDuration prometheus.Histogram
	cascadeFailures *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		entityOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_entity_operations_total",
			Help: "Entity store operations by kind, operation and status",
		}, []string{"kind", "operation", "status"}),
		corruptEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_corrupt_entities_total",
			Help: "Blobs that failed to decode",
		}, []string{"kind"}),
		readFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_read_fallbacks_total",
			Help: "Reads served by a fallback path",
		}, []string{"kind", "source"}),
		tombstones: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracker_tombstones",
			Help: "Tombstoned ids currently tracked",
		}, []string{"kind"}),
		restored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_restored_entities_total",
			Help: "Entities written back from snapshots during recovery",
		}, []string{"kind"}),
		restoreDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_recover_duration_seconds",
			Help:    "Time spent in startup recovery",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		cascadeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_cascade_step_failures_total",
			Help: "Failed steps of cascading deletes",
		}, []string{"step"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) Op(kind, op string, err error) {
	if m == nil {
		return
	}
	m.entityOps.WithLabelValues(kind, op, status(err)).Inc()
}

func (m *Metrics) Corrupt(kind string) {
	if m == nil {
		return
	}
	m.corruptEntities.WithLabelValues(kind).Inc()
}

func (m *Metrics) Fallback(kind, source string) {
	if m == nil {
		return
	}
	m.readFallbacks.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) SetTombstones(kind string, n int) {
	if m == nil {
		return
	}
	m.tombstones.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) Restored(kind string, n int) {
	if m == nil {
		return
	}
	m.restored.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) RecoverDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.restoreDuration.Observe(d.Seconds())
}

func (m *Metrics) CascadeFailure(step string) {
	if m == nil {
		return
	}
	m.cascadeFailures.WithLabelValues(step).Inc()
}

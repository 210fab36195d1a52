package metrics

import (
	"time"

	"github.com/goclaw/dispatch/pkg/dispatch"
	"github.com/prometheus/client_golang/prometheus"
)

var _ dispatch.MetricsRecorder = (*Manager)(nil)

func (m *Manager) initDispatchMetrics(cfg Config) {
	m.dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Total number of signal dispatches by mode and outcome",
		},
		[]string{"signal", "mode", "status"},
	)

	m.dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Time from firing a signal until every receiver returned",
			Buckets: cfg.DispatchDurationBuckets,
		},
		[]string{"signal", "mode"},
	)

	m.dispatchReceivers = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_receivers",
			Help:    "Number of receivers reached per dispatch",
			Buckets: cfg.ReceiverCountBuckets,
		},
		[]string{"signal"},
	)

	m.receiverFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_receiver_failures_total",
			Help: "Total number of receiver failures by mode and kind",
		},
		[]string{"signal", "mode", "kind"},
	)

	m.registry.MustRegister(m.dispatches)
	m.registry.MustRegister(m.dispatchDuration)
	m.registry.MustRegister(m.dispatchReceivers)
	m.registry.MustRegister(m.receiverFailures)
}

func (m *Manager) initRegistryMetrics() {
	m.registryOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_registry_operations_total",
			Help: "Total number of connect, duplicate and disconnect operations",
		},
		[]string{"signal", "op"},
	)

	m.stalePurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_stale_receivers_purged_total",
			Help: "Total number of weak registrations purged after their receiver was collected",
		},
		[]string{"signal"},
	)

	m.receivers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_registered_receivers",
			Help: "Current number of registrations per signal",
		},
		[]string{"signal"},
	)

	m.registry.MustRegister(m.registryOps)
	m.registry.MustRegister(m.stalePurged)
	m.registry.MustRegister(m.receivers)
}

// RecordDispatch records one completed dispatch.
func (m *Manager) RecordDispatch(signal, mode, status string, receivers int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.dispatches.WithLabelValues(signal, mode, status).Inc()
	m.dispatchDuration.WithLabelValues(signal, mode).Observe(duration.Seconds())
	m.dispatchReceivers.WithLabelValues(signal).Observe(float64(receivers))
}

// RecordReceiverFailure records a receiver that returned an error or panicked.
func (m *Manager) RecordReceiverFailure(signal, mode, kind string) {
	if !m.enabled {
		return
	}
	m.receiverFailures.WithLabelValues(signal, mode, kind).Inc()
}

// RecordRegistryOp records a registry operation.
func (m *Manager) RecordRegistryOp(signal, op string) {
	if !m.enabled {
		return
	}
	m.registryOps.WithLabelValues(signal, op).Inc()
}

// RecordStalePurge records weak registrations dropped by a purge.
func (m *Manager) RecordStalePurge(signal string, purged int) {
	if !m.enabled {
		return
	}
	m.stalePurged.WithLabelValues(signal).Add(float64(purged))
}

// SetRegisteredReceivers sets the registration gauge of a signal.
func (m *Manager) SetRegisteredReceivers(signal string, n int) {
	if !m.enabled {
		return
	}
	m.receivers.WithLabelValues(signal).Set(float64(n))
}

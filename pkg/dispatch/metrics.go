package dispatch

import (
	"sync"
	"time"
)

// MetricsRecorder defines metrics hooks for signal operations.
type MetricsRecorder interface {
	RecordDispatch(signal, mode, status string, receivers int, duration time.Duration)
	RecordReceiverFailure(signal, mode, kind string)
	RecordRegistryOp(signal, op string)
	RecordStalePurge(signal string, purged int)
}

type nopMetrics struct{}

func (n *nopMetrics) RecordDispatch(string, string, string, int, time.Duration) {}
func (n *nopMetrics) RecordReceiverFailure(string, string, string)              {}
func (n *nopMetrics) RecordRegistryOp(string, string)                           {}
func (n *nopMetrics) RecordStalePurge(string, int)                              {}

var (
	metricsMu sync.RWMutex
	metrics   MetricsRecorder = &nopMetrics{}
)

// SetMetricsRecorder sets the package-level dispatch metrics recorder.
func SetMetricsRecorder(recorder MetricsRecorder) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if recorder == nil {
		metrics = &nopMetrics{}
		return
	}
	metrics = recorder
}

func metricsRecorder() MetricsRecorder {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if metrics == nil {
		return &nopMetrics{}
	}
	return metrics
}

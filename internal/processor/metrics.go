package processor

import "time"

// MetricsRecorder defines the instrumentation points wrapped around each
// processing step. Implementations record to a backend; tests use fakes.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	RecordRetried()
	RecordDeadLettered()
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
// It does nothing, eliminating the need for nil checks.
type NoOpMetrics struct{}

// Compile-time check that NoOpMetrics implements MetricsRecorder.
var _ MetricsRecorder = (*NoOpMetrics)(nil)

func (n *NoOpMetrics) RecordReceived()                 {}
func (n *NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (n *NoOpMetrics) RecordError()                    {}
func (n *NoOpMetrics) RecordRetried()                  {}
func (n *NoOpMetrics) RecordDeadLettered()             {}

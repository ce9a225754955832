package metrics

import (
	"time"

	"creditwatch/internal/processor"
)

// CollectorAdapter adapts a Collector to the processor's MetricsRecorder.
type CollectorAdapter struct {
	collector *Collector
}

// NewCollectorAdapter wraps a Collector to implement MetricsRecorder.
func NewCollectorAdapter(collector *Collector) *CollectorAdapter {
	return &CollectorAdapter{collector: collector}
}

func (a *CollectorAdapter) RecordReceived() {
	a.collector.RecordReceived()
}

func (a *CollectorAdapter) RecordProcessed(latency time.Duration) {
	a.collector.RecordProcessed(latency)
}

func (a *CollectorAdapter) RecordError() {
	a.collector.RecordError()
}

func (a *CollectorAdapter) RecordRetried() {
	a.collector.RecordRetried()
}

func (a *CollectorAdapter) RecordDeadLettered() {
	a.collector.RecordDeadLettered()
}

// Ensure CollectorAdapter implements MetricsRecorder.
var _ processor.MetricsRecorder = (*CollectorAdapter)(nil)

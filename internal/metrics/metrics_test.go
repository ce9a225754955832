package metrics

import (
	"context"
	"testing"
	"time"
)

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector("creditwatch-test", nil)

	c.RecordReceived()
	c.RecordReceived()
	c.RecordProcessed(10 * time.Millisecond)
	c.RecordProcessed(30 * time.Millisecond)
	c.RecordRetried()
	c.RecordDeadLettered()
	c.RecordError()

	s := c.GetSnapshot()
	if s.ServiceName != "creditwatch-test" {
		t.Errorf("ServiceName = %q", s.ServiceName)
	}
	if s.AlertsReceived != 2 {
		t.Errorf("AlertsReceived = %d, want 2", s.AlertsReceived)
	}
	if s.AlertsProcessed != 2 {
		t.Errorf("AlertsProcessed = %d, want 2", s.AlertsProcessed)
	}
	if s.AlertsRetried != 1 {
		t.Errorf("AlertsRetried = %d, want 1", s.AlertsRetried)
	}
	if s.AlertsDeadLettered != 1 {
		t.Errorf("AlertsDeadLettered = %d, want 1", s.AlertsDeadLettered)
	}
	if s.ProcessingErrors != 1 {
		t.Errorf("ProcessingErrors = %d, want 1", s.ProcessingErrors)
	}

	wantAvg := float64((10*time.Millisecond + 30*time.Millisecond).Nanoseconds()) / 2
	if s.AvgProcessingLatencyNs != wantAvg {
		t.Errorf("AvgProcessingLatencyNs = %f, want %f", s.AvgProcessingLatencyNs, wantAvg)
	}
}

func TestCollector_SnapshotWithoutActivity(t *testing.T) {
	c := NewCollector("creditwatch-test", nil)

	s := c.GetSnapshot()
	if s.AlertsProcessed != 0 || s.AvgProcessingLatencyNs != 0 {
		t.Errorf("empty snapshot = %+v", s)
	}
}

func TestCollector_StartStopWithoutRedis(t *testing.T) {
	c := NewCollector("creditwatch-test", nil)
	c.SetReportInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	c.Stop()
}

func TestCollectorAdapter_ForwardsCalls(t *testing.T) {
	c := NewCollector("creditwatch-test", nil)
	a := NewCollectorAdapter(c)

	a.RecordReceived()
	a.RecordProcessed(time.Millisecond)
	a.RecordError()
	a.RecordRetried()
	a.RecordDeadLettered()

	s := c.GetSnapshot()
	if s.AlertsReceived != 1 || s.AlertsProcessed != 1 || s.ProcessingErrors != 1 ||
		s.AlertsRetried != 1 || s.AlertsDeadLettered != 1 {
		t.Errorf("snapshot = %+v, want all counters at 1", s)
	}
}

// Package metrics collects pipeline counters and reports them periodically
// to Redis for centralized access.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// PipelineMetrics is the snapshot written to Redis and served by the API.
type PipelineMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Counters (monotonically increasing since start)
	AlertsReceived     uint64 `json:"alerts_received"`
	AlertsProcessed    uint64 `json:"alerts_processed"`
	AlertsRetried      uint64 `json:"alerts_retried"`
	AlertsDeadLettered uint64 `json:"alerts_dead_lettered"`
	ProcessingErrors   uint64 `json:"processing_errors"`

	// Rates (per report interval)
	AlertsPerSecond float64 `json:"alerts_per_second"`

	// Latencies (averages in nanoseconds)
	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`
}

// Collector collects and reports metrics for the service.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	// Atomic counters
	alertsReceived     atomic.Uint64
	alertsProcessed    atomic.Uint64
	alertsRetried      atomic.Uint64
	alertsDeadLettered atomic.Uint64
	processingErrors   atomic.Uint64

	// For rate calculation
	lastReportTime     time.Time
	lastProcessedCount uint64

	// Latency tracking
	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a metrics collector. A nil Redis client disables
// reporting; snapshots still work.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		lastReportTime: time.Now().UTC(),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// RecordReceived increments the alerts received counter.
func (c *Collector) RecordReceived() {
	c.alertsReceived.Add(1)
}

// RecordProcessed increments the processed counter with latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.alertsProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordRetried increments the redelivery counter.
func (c *Collector) RecordRetried() {
	c.alertsRetried.Add(1)
}

// RecordDeadLettered increments the dead-letter counter.
func (c *Collector) RecordDeadLettered() {
	c.alertsDeadLettered.Add(1)
}

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() {
	c.processingErrors.Add(1)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *PipelineMetrics {
	now := time.Now().UTC()
	processed := c.alertsProcessed.Load()

	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(processed-c.lastProcessedCount) / elapsed
	}

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	return &PipelineMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		AlertsReceived:         c.alertsReceived.Load(),
		AlertsProcessed:        processed,
		AlertsRetried:          c.alertsRetried.Load(),
		AlertsDeadLettered:     c.alertsDeadLettered.Load(),
		ProcessingErrors:       c.processingErrors.Load(),
		AlertsPerSecond:        rate,
		AvgProcessingLatencyNs: avgLatencyNs,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()

	// Update rate calculation state
	c.lastReportTime = snapshot.LastUpdated
	c.lastProcessedCount = snapshot.AlertsProcessed

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

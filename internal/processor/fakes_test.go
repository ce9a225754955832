package processor

import (
	"context"
	"sync"
	"time"

	"creditwatch/internal/alerts"
	"creditwatch/internal/queue"
)

// fakeAccounts records account side-effect calls and fails on demand.
type fakeAccounts struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{errs: make(map[string]error)}
}

func (f *fakeAccounts) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.errs[name]
}

func (f *fakeAccounts) failOn(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeAccounts) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAccounts) SuspendTransactions(ctx context.Context, accountID int) error {
	return f.record("SuspendTransactions")
}

func (f *fakeAccounts) MarkForEmergencyReview(ctx context.Context, accountID int) error {
	return f.record("MarkForEmergencyReview")
}

func (f *fakeAccounts) MarkForReview(ctx context.Context, accountID int) error {
	return f.record("MarkForReview")
}

func (f *fakeAccounts) IncreaseMonitoringFrequency(ctx context.Context, accountID int) error {
	return f.record("IncreaseMonitoringFrequency")
}

func (f *fakeAccounts) UpdateRiskRating(ctx context.Context, accountID int, severity alerts.Severity) error {
	return f.record("UpdateRiskRating")
}

func (f *fakeAccounts) RecordAudit(ctx context.Context, alert *alerts.Alert, action string) error {
	return f.record("RecordAudit:" + action)
}

func (f *fakeAccounts) RecordMonitoringEntry(ctx context.Context, alert *alerts.Alert) error {
	return f.record("RecordMonitoringEntry")
}

// roleNotification is one captured NotifyRole call.
type roleNotification struct {
	role    string
	message string
	level   string
}

// fakeDispatcher captures dispatches and tier notifications.
type fakeDispatcher struct {
	mu            sync.Mutex
	dispatched    []*alerts.Alert
	notifications []roleNotification
	dispatchErr   error
	notifyErr     error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, alert *alerts.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, alert)
	return f.dispatchErr
}

func (f *fakeDispatcher) NotifyRole(ctx context.Context, role, message, level string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, roleNotification{role: role, message: message, level: level})
	return f.notifyErr
}

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	mu           sync.Mutex
	received     int
	processed    int
	errors       int
	retried      int
	deadLettered int
}

func (f *fakeMetrics) RecordReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received++
}

func (f *fakeMetrics) RecordProcessed(latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
}

func (f *fakeMetrics) RecordError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func (f *fakeMetrics) RecordRetried() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried++
}

func (f *fakeMetrics) RecordDeadLettered() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered++
}

// fakeQueue serves queued batches and records terminal resolutions.
type fakeQueue struct {
	mu           sync.Mutex
	batches      [][]queue.QueuedMessage
	completed    []string
	abandoned    []string
	deadLettered map[string]string
	resolveErr   error

	// resolved receives one signal per terminal call.
	resolved chan struct{}
}

func newFakeQueue(batches ...[]queue.QueuedMessage) *fakeQueue {
	return &fakeQueue{
		batches:      batches,
		deadLettered: make(map[string]string),
		resolved:     make(chan struct{}, 64),
	}
}

func (f *fakeQueue) Send(ctx context.Context, alert *alerts.Alert) error {
	return nil
}

func (f *fakeQueue) ReceiveBatch(ctx context.Context, max int, wait time.Duration) ([]queue.QueuedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeQueue) Complete(ctx context.Context, msg queue.QueuedMessage) error {
	f.mu.Lock()
	f.completed = append(f.completed, msg.MessageID)
	err := f.resolveErr
	f.mu.Unlock()
	f.resolved <- struct{}{}
	return err
}

func (f *fakeQueue) Abandon(ctx context.Context, msg queue.QueuedMessage) error {
	f.mu.Lock()
	f.abandoned = append(f.abandoned, msg.MessageID)
	err := f.resolveErr
	f.mu.Unlock()
	f.resolved <- struct{}{}
	return err
}

func (f *fakeQueue) DeadLetter(ctx context.Context, msg queue.QueuedMessage, reason string) error {
	f.mu.Lock()
	f.deadLettered[msg.MessageID] = reason
	err := f.resolveErr
	f.mu.Unlock()
	f.resolved <- struct{}{}
	return err
}

func (f *fakeQueue) Close() error {
	return nil
}

package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"creditwatch/internal/alerts"
	"creditwatch/internal/queue"
	"creditwatch/internal/routing"
)

const (
	// DefaultMaxAttempts is the delivery count at which a failing message
	// is dead-lettered instead of retried.
	DefaultMaxAttempts = 3

	// ReasonInvalidFormat marks payloads that can never be processed.
	ReasonInvalidFormat = "InvalidMessageFormat"
)

// OutcomeKind is the terminal classification of a queued message.
type OutcomeKind int

const (
	OutcomeComplete OutcomeKind = iota
	OutcomeRetry
	OutcomeDeadLetter
)

// String returns the name of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeComplete:
		return "complete"
	case OutcomeRetry:
		return "retry"
	case OutcomeDeadLetter:
		return "dead-letter"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the explicit resolution of one queued message. Processing
// errors never escape as exceptions; every message resolves to exactly one
// of Complete, Retry, or DeadLetter.
type Outcome struct {
	MessageID string
	Kind      OutcomeKind
	// Reason is set for dead-letter outcomes and kept human-readable for
	// manual inspection of the side channel.
	Reason string
}

// Processor classifies queued alert messages and applies severity-tiered
// side effects.
type Processor struct {
	accounts    AccountStore
	dispatcher  Dispatcher
	metrics     MetricsRecorder
	maxAttempts int
}

// New creates a processor with no-op metrics and the default retry limit.
func New(accounts AccountStore, dispatcher Dispatcher) *Processor {
	return NewWithOptions(accounts, dispatcher, nil, DefaultMaxAttempts)
}

// NewWithOptions creates a processor with the given metrics recorder and
// retry limit. A nil recorder falls back to no-op; a non-positive limit
// falls back to the default.
func NewWithOptions(accounts AccountStore, dispatcher Dispatcher, m MetricsRecorder, maxAttempts int) *Processor {
	if m == nil {
		m = &NoOpMetrics{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Processor{
		accounts:    accounts,
		dispatcher:  dispatcher,
		metrics:     m,
		maxAttempts: maxAttempts,
	}
}

// Process resolves every message in the batch to a terminal outcome.
// Messages are independent: one message's failure never affects another's
// classification, and no ordering between them is assumed.
func (p *Processor) Process(ctx context.Context, batch []queue.QueuedMessage) []Outcome {
	outcomes := make([]Outcome, 0, len(batch))
	for _, msg := range batch {
		outcomes = append(outcomes, p.processMessage(ctx, msg))
	}
	return outcomes
}

// processMessage classifies a single message.
func (p *Processor) processMessage(ctx context.Context, msg queue.QueuedMessage) Outcome {
	startTime := time.Now()
	p.metrics.RecordReceived()

	alert, err := alerts.Decode(msg.Payload)
	if err != nil {
		// A malformed payload will never become well-formed on redelivery.
		slog.Warn("Unparseable alert message, dead-lettering",
			"message_id", msg.MessageID,
			"error", err,
		)
		p.metrics.RecordDeadLettered()
		return Outcome{MessageID: msg.MessageID, Kind: OutcomeDeadLetter, Reason: ReasonInvalidFormat}
	}

	if err := p.applySeverityEffects(ctx, alert); err != nil {
		p.metrics.RecordError()
		return p.classifyFailure(msg, alert, err)
	}

	// Real-time delivery is best-effort; the persisted side effects above
	// are the source of truth, so a dispatch failure never fails the message.
	if err := p.dispatcher.Dispatch(ctx, alert); err != nil {
		slog.Warn("Real-time dispatch failed",
			"alert_id", alert.ID,
			"account_id", alert.AccountID,
			"error", err,
		)
	}

	p.metrics.RecordProcessed(time.Since(startTime))
	slog.Info("Processed credit alert",
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"alert_type", alert.AlertType,
		"severity", alert.Severity.String(),
		"delivery_count", msg.DeliveryCount,
	)
	return Outcome{MessageID: msg.MessageID, Kind: OutcomeComplete}
}

// classifyFailure decides between retry and dead-letter for a transient
// processing failure, based on how many deliveries the message has had.
func (p *Processor) classifyFailure(msg queue.QueuedMessage, alert *alerts.Alert, cause error) Outcome {
	if msg.DeliveryCount < p.maxAttempts {
		slog.Info("Rescheduling alert for redelivery",
			"message_id", msg.MessageID,
			"alert_id", alert.ID,
			"delivery_count", msg.DeliveryCount,
			"max_attempts", p.maxAttempts,
			"error", cause,
		)
		p.metrics.RecordRetried()
		return Outcome{MessageID: msg.MessageID, Kind: OutcomeRetry}
	}

	slog.Error("Alert processing failed permanently, dead-lettering",
		"message_id", msg.MessageID,
		"alert_id", alert.ID,
		"delivery_count", msg.DeliveryCount,
		"error", cause,
	)
	p.metrics.RecordDeadLettered()
	return Outcome{
		MessageID: msg.MessageID,
		Kind:      OutcomeDeadLetter,
		Reason:    fmt.Sprintf("ProcessingFailed: %s", cause.Error()),
	}
}

// applySeverityEffects runs the side-effect tier for the alert's severity.
func (p *Processor) applySeverityEffects(ctx context.Context, alert *alerts.Alert) error {
	switch alert.Severity {
	case alerts.SeverityCritical:
		return p.processCriticalAlert(ctx, alert)
	case alerts.SeverityHigh:
		return p.processHighPriorityAlert(ctx, alert)
	default:
		return p.processStandardAlert(ctx, alert)
	}
}

// processCriticalAlert notifies management, marks the account for emergency
// review, suspends new transactions, and writes an audit entry.
func (p *Processor) processCriticalAlert(ctx context.Context, alert *alerts.Alert) error {
	slog.Warn("Processing critical credit alert",
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"alert_type", alert.AlertType,
	)

	msg := fmt.Sprintf("Critical credit alert %s on account %d: %s", alert.ID, alert.AccountID, alert.Description)
	if err := p.dispatcher.NotifyRole(ctx, routing.RoleManager, msg, "critical"); err != nil {
		return fmt.Errorf("failed to notify management: %w", err)
	}
	if err := p.accounts.MarkForEmergencyReview(ctx, alert.AccountID); err != nil {
		return fmt.Errorf("failed to mark account for emergency review: %w", err)
	}
	if err := p.accounts.SuspendTransactions(ctx, alert.AccountID); err != nil {
		return fmt.Errorf("failed to suspend account transactions: %w", err)
	}
	if err := p.accounts.RecordAudit(ctx, alert, "CRITICAL_ALERT_PROCESSED"); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// processHighPriorityAlert notifies the credit-manager tier, flags the
// account for review, and increases monitoring frequency.
func (p *Processor) processHighPriorityAlert(ctx context.Context, alert *alerts.Alert) error {
	slog.Warn("Processing high priority credit alert",
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"alert_type", alert.AlertType,
	)

	msg := fmt.Sprintf("High priority credit alert %s on account %d: %s", alert.ID, alert.AccountID, alert.Description)
	if err := p.dispatcher.NotifyRole(ctx, routing.RoleManager, msg, "warning"); err != nil {
		return fmt.Errorf("failed to notify credit manager: %w", err)
	}
	if err := p.accounts.MarkForReview(ctx, alert.AccountID); err != nil {
		return fmt.Errorf("failed to mark account for review: %w", err)
	}
	if err := p.accounts.IncreaseMonitoringFrequency(ctx, alert.AccountID); err != nil {
		return fmt.Errorf("failed to increase monitoring frequency: %w", err)
	}
	return nil
}

// processStandardAlert notifies the assigned credit officer, updates the
// account's risk rating, and writes a monitoring-log entry.
func (p *Processor) processStandardAlert(ctx context.Context, alert *alerts.Alert) error {
	slog.Info("Processing standard credit alert",
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"alert_type", alert.AlertType,
	)

	msg := fmt.Sprintf("Credit alert %s on account %d: %s", alert.ID, alert.AccountID, alert.Description)
	if err := p.dispatcher.NotifyRole(ctx, routing.RoleCreditOfficer, msg, "info"); err != nil {
		return fmt.Errorf("failed to notify credit officer: %w", err)
	}
	if err := p.accounts.UpdateRiskRating(ctx, alert.AccountID, alert.Severity); err != nil {
		return fmt.Errorf("failed to update risk rating: %w", err)
	}
	if err := p.accounts.RecordMonitoringEntry(ctx, alert); err != nil {
		return fmt.Errorf("failed to write monitoring entry: %w", err)
	}
	return nil
}

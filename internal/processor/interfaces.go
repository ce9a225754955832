// Package processor pulls alert batches from the queue, classifies each
// message to a terminal outcome, and applies severity-tiered side effects.
package processor

import (
	"context"

	"creditwatch/internal/alerts"
)

// AccountStore applies the persisted side effects of alert processing.
// Every operation must be idempotent: under at-least-once delivery a side
// effect may run more than once for the same alert and must converge to the
// same end state.
type AccountStore interface {
	// SuspendTransactions blocks new transactions on the account.
	SuspendTransactions(ctx context.Context, accountID int) error

	// MarkForEmergencyReview flags the account for immediate review.
	MarkForEmergencyReview(ctx context.Context, accountID int) error

	// MarkForReview flags the account for standard review.
	MarkForReview(ctx context.Context, accountID int) error

	// IncreaseMonitoringFrequency raises the account's monitoring level.
	IncreaseMonitoringFrequency(ctx context.Context, accountID int) error

	// UpdateRiskRating sets the account's risk rating from the alert severity.
	UpdateRiskRating(ctx context.Context, accountID int, severity alerts.Severity) error

	// RecordAudit writes an audit entry for the alert, keyed so that
	// re-execution does not produce duplicates.
	RecordAudit(ctx context.Context, alert *alerts.Alert, action string) error

	// RecordMonitoringEntry writes a monitoring-log entry for the alert.
	RecordMonitoringEntry(ctx context.Context, alert *alerts.Alert) error
}

// Dispatcher delivers processed alerts and tier notifications to live
// subscribers. Dispatch is best-effort: a delivery failure never fails the
// message, since the persisted side effects are the source of truth.
type Dispatcher interface {
	// Dispatch fans an alert out to its role and account groups.
	Dispatch(ctx context.Context, alert *alerts.Alert) error

	// NotifyRole sends a tier notification to every member of a role group.
	NotifyRole(ctx context.Context, role, message, level string) error
}

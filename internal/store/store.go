// Package store persists the side effects of alert processing. Every write
// is idempotent: flags are set, not incremented, and log entries are keyed
// by alert id, so re-execution after a queue redelivery converges to the
// same end state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"creditwatch/internal/alerts"
)

// Review status values on loan accounts. Emergency outranks standard: a
// standard review flag never downgrades an emergency one.
const (
	ReviewStatusNone      = "NONE"
	ReviewStatusStandard  = "REVIEW"
	ReviewStatusEmergency = "EMERGENCY"
)

// Store wraps a database connection and applies account side effects.
type Store struct {
	conn *sql.DB
}

// New opens a connection to Postgres and verifies it.
func New(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")
	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		slog.Info("Closing database connection")
		return s.conn.Close()
	}
	return nil
}

// SuspendTransactions blocks new transactions on the account. Setting the
// flag again is a no-op.
func (s *Store) SuspendTransactions(ctx context.Context, accountID int) error {
	query := `
		UPDATE loan_accounts
		SET transactions_suspended = TRUE, updated_at = NOW()
		WHERE account_id = $1
	`
	return s.execAccountUpdate(ctx, query, accountID, "suspend transactions")
}

// MarkForEmergencyReview flags the account for immediate review.
func (s *Store) MarkForEmergencyReview(ctx context.Context, accountID int) error {
	query := `
		UPDATE loan_accounts
		SET review_status = $2, updated_at = NOW()
		WHERE account_id = $1
	`
	result, err := s.conn.ExecContext(ctx, query, accountID, ReviewStatusEmergency)
	if err != nil {
		return fmt.Errorf("failed to mark account %d for emergency review: %w", accountID, err)
	}
	return checkAccountExists(result, accountID)
}

// MarkForReview flags the account for standard review without downgrading
// an emergency flag set by a critical alert.
func (s *Store) MarkForReview(ctx context.Context, accountID int) error {
	query := `
		UPDATE loan_accounts
		SET review_status = $2, updated_at = NOW()
		WHERE account_id = $1 AND review_status <> $3
	`
	_, err := s.conn.ExecContext(ctx, query, accountID, ReviewStatusStandard, ReviewStatusEmergency)
	if err != nil {
		return fmt.Errorf("failed to mark account %d for review: %w", accountID, err)
	}
	return nil
}

// IncreaseMonitoringFrequency raises the account's monitoring level to at
// least the elevated tier. GREATEST keeps a repeated run from moving the
// level at all.
func (s *Store) IncreaseMonitoringFrequency(ctx context.Context, accountID int) error {
	query := `
		UPDATE loan_accounts
		SET monitoring_level = GREATEST(monitoring_level, 2), updated_at = NOW()
		WHERE account_id = $1
	`
	return s.execAccountUpdate(ctx, query, accountID, "increase monitoring frequency")
}

// UpdateRiskRating sets the account's risk rating from the alert severity.
func (s *Store) UpdateRiskRating(ctx context.Context, accountID int, severity alerts.Severity) error {
	query := `
		UPDATE loan_accounts
		SET risk_rating = $2, updated_at = NOW()
		WHERE account_id = $1
	`
	result, err := s.conn.ExecContext(ctx, query, accountID, riskRatingFor(severity))
	if err != nil {
		return fmt.Errorf("failed to update risk rating for account %d: %w", accountID, err)
	}
	return checkAccountExists(result, accountID)
}

// RecordAudit writes an audit entry for the alert. The (alert_id, action)
// uniqueness makes redelivered messages leave a single entry.
func (s *Store) RecordAudit(ctx context.Context, alert *alerts.Alert, action string) error {
	query := `
		INSERT INTO audit_log (alert_id, account_id, action, severity, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (alert_id, action) DO NOTHING
	`
	_, err := s.conn.ExecContext(ctx, query,
		alert.ID,
		alert.AccountID,
		action,
		alert.Severity.String(),
		alert.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry for alert %s: %w", alert.ID, err)
	}
	return nil
}

// RecordMonitoringEntry writes a monitoring-log entry for the alert, once
// per alert id regardless of redeliveries.
func (s *Store) RecordMonitoringEntry(ctx context.Context, alert *alerts.Alert) error {
	query := `
		INSERT INTO monitoring_log (alert_id, account_id, alert_type, severity, previous_score, current_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (alert_id) DO NOTHING
	`
	_, err := s.conn.ExecContext(ctx, query,
		alert.ID,
		alert.AccountID,
		alert.AlertType,
		alert.Severity.String(),
		alert.PreviousScore,
		alert.CurrentScore,
	)
	if err != nil {
		return fmt.Errorf("failed to write monitoring entry for alert %s: %w", alert.ID, err)
	}
	return nil
}

// AccountStatus returns a short status string for one account, used to
// answer hub status requests.
func (s *Store) AccountStatus(ctx context.Context, accountID int) (string, error) {
	query := `
		SELECT transactions_suspended, review_status
		FROM loan_accounts
		WHERE account_id = $1
	`
	var suspended bool
	var review string
	err := s.conn.QueryRowContext(ctx, query, accountID).Scan(&suspended, &review)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("account not found: %d", accountID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query account %d status: %w", accountID, err)
	}

	switch {
	case suspended:
		return "Suspended", nil
	case review == ReviewStatusEmergency:
		return "EmergencyReview", nil
	case review == ReviewStatusStandard:
		return "UnderReview", nil
	default:
		return "Active", nil
	}
}

// execAccountUpdate runs an account update and verifies the account exists.
func (s *Store) execAccountUpdate(ctx context.Context, query string, accountID int, op string) error {
	result, err := s.conn.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to %s for account %d: %w", op, accountID, err)
	}
	return checkAccountExists(result, accountID)
}

// checkAccountExists turns a zero-row update into a not-found error.
func checkAccountExists(result sql.Result, accountID int) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("account not found: %d", accountID)
	}
	return nil
}

// riskRatingFor maps an alert severity to the account risk rating it
// implies.
func riskRatingFor(severity alerts.Severity) string {
	switch severity {
	case alerts.SeverityCritical:
		return "SEVERE"
	case alerts.SeverityHigh:
		return "ELEVATED"
	case alerts.SeverityMedium:
		return "WATCH"
	default:
		return "STANDARD"
	}
}

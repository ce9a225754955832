package hub

import (
	"encoding/json"
	"time"

	"creditwatch/internal/alerts"
)

// Event names delivered to clients. Each payload is a flat
// JSON-serializable object; the exact schema is the contract with the UI.
const (
	EventCreditAlert           = "CreditAlert"
	EventAccountStatusUpdate   = "AccountStatusUpdate"
	EventSystemNotification    = "SystemNotification"
	EventReportReady           = "ReportReady"
	EventAccountStatusReceived = "AccountStatusReceived"
)

// Event is the JSON envelope written to every client connection.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode serializes an event envelope for transport.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// CreditAlertPayload carries the full alert fields needed to render it.
type CreditAlertPayload struct {
	ID            string    `json:"id"`
	AccountID     int       `json:"account_id"`
	VoucherID     *int      `json:"voucher_id,omitempty"`
	Severity      string    `json:"severity"`
	AlertType     string    `json:"alert_type"`
	Description   string    `json:"description"`
	PreviousScore int       `json:"previous_score"`
	CurrentScore  int       `json:"current_score"`
	CreatedAt     time.Time `json:"created_at"`
	Resolved      bool      `json:"resolved"`
}

// NewCreditAlertEvent wraps an alert in its delivery envelope.
func NewCreditAlertEvent(a *alerts.Alert) Event {
	return Event{
		Event: EventCreditAlert,
		Data: CreditAlertPayload{
			ID:            a.ID,
			AccountID:     a.AccountID,
			VoucherID:     a.VoucherID,
			Severity:      a.Severity.String(),
			AlertType:     a.AlertType,
			Description:   a.Description,
			PreviousScore: a.PreviousScore,
			CurrentScore:  a.CurrentScore,
			CreatedAt:     a.CreatedAt,
			Resolved:      a.Resolved,
		},
	}
}

// AccountStatusPayload carries an account status transition.
type AccountStatusPayload struct {
	AccountID int       `json:"account_id"`
	NewStatus string    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemNotificationPayload carries an operator-facing message.
type SystemNotificationPayload struct {
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportReadyPayload tells one user a generated report is downloadable.
type ReportReadyPayload struct {
	ReportName  string    `json:"report_name"`
	DownloadURL string    `json:"download_url"`
	Timestamp   time.Time `json:"timestamp"`
}

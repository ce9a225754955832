// Package alerts defines the credit alert domain model shared by the queue,
// processor, and fan-out layers.
package alerts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Severity is the ordered criticality level of an alert.
// It drives both side-effect intensity and notification audience breadth.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the canonical name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Valid reports whether the severity is one of the four known levels.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// ParseSeverity converts a severity name to its Severity value.
// Matching is exact on the canonical names.
func ParseSeverity(name string) (Severity, error) {
	switch name {
	case "Low":
		return SeverityLow, nil
	case "Medium":
		return SeverityMedium, nil
	case "High":
		return SeverityHigh, nil
	case "Critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity: %q", name)
	}
}

// MarshalJSON encodes the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid severity %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the severity name or the upstream producer's
// integer encoding (0=Low .. 3=Critical).
func (s *Severity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		sev, err := ParseSeverity(name)
		if err != nil {
			return err
		}
		*s = sev
		return nil
	}

	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid severity value: %s", data)
	}
	sev := Severity(n)
	if !sev.Valid() {
		return fmt.Errorf("severity out of range: %d", n)
	}
	*s = sev
	return nil
}

// Alert is an immutable credit-risk alert event emitted by the upstream
// risk-evaluation producer. Resolved is mutated only by a separate
// resolution workflow, never by this pipeline.
type Alert struct {
	ID            string    `json:"id"`
	AccountID     int       `json:"account_id"`
	VoucherID     *int      `json:"voucher_id,omitempty"`
	Severity      Severity  `json:"severity"`
	AlertType     string    `json:"alert_type"`
	Description   string    `json:"description"`
	PreviousScore int       `json:"previous_score"`
	CurrentScore  int       `json:"current_score"`
	CreatedAt     time.Time `json:"created_at"`
	Resolved      bool      `json:"resolved"`
}

// Validate checks the fields required for the alert to be processable.
func (a *Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("alert id cannot be empty")
	}
	if a.AccountID <= 0 {
		return fmt.Errorf("alert %s: account_id must be positive", a.ID)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("alert %s: invalid severity %d", a.ID, int(a.Severity))
	}
	return nil
}

// Decode deserializes and validates an alert payload.
// A non-nil error means the payload is malformed and will never become
// well-formed on redelivery.
func Decode(payload []byte) (*Alert, error) {
	var a Alert
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Encode serializes an alert for the queue transport.
func Encode(a *Alert) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert %s: %w", a.ID, err)
	}
	return data, nil
}

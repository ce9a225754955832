// Package dispatch routes processed alerts to the notification hub's
// delivery groups. Targeting always goes through the routing table, so the
// fan-out audience and the processor's tier notifications cannot diverge.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"creditwatch/internal/alerts"
	"creditwatch/internal/hub"
	"creditwatch/internal/routing"
)

// Deliverer is the subset of the hub the dispatcher needs.
type Deliverer interface {
	DeliverToGroups(groups []string, event hub.Event) int
	DeliverToUser(userID string, event hub.Event) int
	Broadcast(event hub.Event) int
}

// Dispatcher fans processed alerts and related notifications out to live
// subscribers.
type Dispatcher struct {
	hub Deliverer
}

// New creates a dispatcher over the given deliverer.
func New(d Deliverer) *Dispatcher {
	return &Dispatcher{hub: d}
}

// Dispatch delivers an alert to the role groups for its severity plus the
// alert's account group, so account subscribers see every alert regardless
// of role targeting. Best-effort: zero live targets is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *alerts.Alert) error {
	groups := routing.DeliveryGroups(alert)
	delivered := d.hub.DeliverToGroups(groups, hub.NewCreditAlertEvent(alert))

	slog.Debug("Dispatched credit alert",
		"alert_id", alert.ID,
		"account_id", alert.AccountID,
		"severity", alert.Severity.String(),
		"groups", groups,
		"delivered", delivered,
	)
	return nil
}

// NotifyRole sends a system notification to one role group.
func (d *Dispatcher) NotifyRole(ctx context.Context, role, message, level string) error {
	d.hub.DeliverToGroups([]string{routing.RoleGroup(role)}, hub.Event{
		Event: hub.EventSystemNotification,
		Data: hub.SystemNotificationPayload{
			Message:   message,
			Level:     level,
			Timestamp: time.Now().UTC(),
		},
	})
	return nil
}

// AccountStatusUpdate notifies the account's subscribers and all role tiers
// of a status transition. A non-empty userID addresses that user only.
func (d *Dispatcher) AccountStatusUpdate(ctx context.Context, accountID int, newStatus, userID string) error {
	event := hub.Event{
		Event: hub.EventAccountStatusUpdate,
		Data: hub.AccountStatusPayload{
			AccountID: accountID,
			NewStatus: newStatus,
			Timestamp: time.Now().UTC(),
		},
	}

	if userID != "" {
		d.hub.DeliverToUser(userID, event)
		return nil
	}

	groups := []string{
		routing.RoleGroup(routing.RoleAdmin),
		routing.RoleGroup(routing.RoleManager),
		routing.RoleGroup(routing.RoleCreditOfficer),
		routing.AccountGroup(accountID),
	}
	d.hub.DeliverToGroups(groups, event)
	return nil
}

// SystemNotification broadcasts a message to every connection, or to one
// role group when role is non-empty.
func (d *Dispatcher) SystemNotification(ctx context.Context, message, level, role string) error {
	event := hub.Event{
		Event: hub.EventSystemNotification,
		Data: hub.SystemNotificationPayload{
			Message:   message,
			Level:     level,
			Timestamp: time.Now().UTC(),
		},
	}

	if role != "" {
		d.hub.DeliverToGroups([]string{routing.RoleGroup(role)}, event)
		return nil
	}
	d.hub.Broadcast(event)
	return nil
}

// ReportReady tells one user a generated report is ready for download.
func (d *Dispatcher) ReportReady(ctx context.Context, userID, reportName, downloadURL string) error {
	d.hub.DeliverToUser(userID, hub.Event{
		Event: hub.EventReportReady,
		Data: hub.ReportReadyPayload{
			ReportName:  reportName,
			DownloadURL: downloadURL,
			Timestamp:   time.Now().UTC(),
		},
	})
	return nil
}

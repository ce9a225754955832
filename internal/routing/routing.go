// Package routing maps alert severities to the role tiers entitled to
// receive them and derives delivery group names. It is the single source of
// truth for audience targeting: the processor's tier notifications and the
// fan-out dispatcher both go through this table, so they can never diverge.
package routing

import (
	"fmt"

	"creditwatch/internal/alerts"
)

// Role names carried in principal claims and used for role groups.
const (
	RoleAdmin         = "Admin"
	RoleManager       = "Manager"
	RoleCreditOfficer = "CreditOfficer"
)

// TargetRoles returns the set of roles that must receive an alert of the
// given severity. The result is never empty.
func TargetRoles(severity alerts.Severity) []string {
	switch severity {
	case alerts.SeverityCritical, alerts.SeverityHigh, alerts.SeverityMedium:
		return []string{RoleAdmin, RoleManager, RoleCreditOfficer}
	default:
		return []string{RoleCreditOfficer}
	}
}

// RoleGroup returns the hub group name for a role.
func RoleGroup(role string) string {
	return "role:" + role
}

// AccountGroup returns the hub group name for an account subscription.
func AccountGroup(accountID int) string {
	return fmt.Sprintf("account:%d", accountID)
}

// DeliveryGroups returns every group an alert must be delivered to: the role
// groups for its severity plus the account group unconditionally, so a
// subscriber watching a specific account sees the alert regardless of the
// severity-based role targeting.
func DeliveryGroups(a *alerts.Alert) []string {
	roles := TargetRoles(a.Severity)
	groups := make([]string, 0, len(roles)+1)
	for _, role := range roles {
		groups = append(groups, RoleGroup(role))
	}
	groups = append(groups, AccountGroup(a.AccountID))
	return groups
}

package routing

import (
	"testing"

	"creditwatch/internal/alerts"
)

func TestTargetRoles_NeverEmpty(t *testing.T) {
	for _, sev := range []alerts.Severity{alerts.SeverityLow, alerts.SeverityMedium, alerts.SeverityHigh, alerts.SeverityCritical} {
		if roles := TargetRoles(sev); len(roles) == 0 {
			t.Errorf("TargetRoles(%v) is empty", sev)
		}
	}
}

func TestTargetRoles_Mapping(t *testing.T) {
	tests := []struct {
		severity alerts.Severity
		want     []string
	}{
		{alerts.SeverityCritical, []string{RoleAdmin, RoleManager, RoleCreditOfficer}},
		{alerts.SeverityHigh, []string{RoleAdmin, RoleManager, RoleCreditOfficer}},
		{alerts.SeverityMedium, []string{RoleAdmin, RoleManager, RoleCreditOfficer}},
		{alerts.SeverityLow, []string{RoleCreditOfficer}},
	}

	for _, tt := range tests {
		got := TargetRoles(tt.severity)
		if len(got) != len(tt.want) {
			t.Errorf("TargetRoles(%v) = %v, want %v", tt.severity, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("TargetRoles(%v)[%d] = %q, want %q", tt.severity, i, got[i], tt.want[i])
			}
		}
	}
}

// The audience only grows with severity: every role targeted at a lower
// severity is targeted at every higher one.
func TestTargetRoles_AudienceMonotonic(t *testing.T) {
	order := []alerts.Severity{alerts.SeverityLow, alerts.SeverityMedium, alerts.SeverityHigh, alerts.SeverityCritical}
	for i := 0; i < len(order)-1; i++ {
		lower := TargetRoles(order[i])
		higher := toSet(TargetRoles(order[i+1]))
		for _, role := range lower {
			if _, ok := higher[role]; !ok {
				t.Errorf("role %q targeted at %v but not at %v", role, order[i], order[i+1])
			}
		}
	}
}

func toSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func TestGroupNames(t *testing.T) {
	if got := RoleGroup("Admin"); got != "role:Admin" {
		t.Errorf("RoleGroup(Admin) = %q", got)
	}
	if got := AccountGroup(42); got != "account:42" {
		t.Errorf("AccountGroup(42) = %q", got)
	}
}

func TestDeliveryGroups_CriticalAlert(t *testing.T) {
	alert := &alerts.Alert{ID: "a-1", AccountID: 42, Severity: alerts.SeverityCritical}

	got := toSet(DeliveryGroups(alert))
	want := []string{"role:Admin", "role:Manager", "role:CreditOfficer", "account:42"}
	if len(got) != len(want) {
		t.Fatalf("DeliveryGroups = %v, want %v", got, want)
	}
	for _, group := range want {
		if _, ok := got[group]; !ok {
			t.Errorf("DeliveryGroups missing %q", group)
		}
	}
}

func TestDeliveryGroups_LowIncludesAccountGroup(t *testing.T) {
	alert := &alerts.Alert{ID: "a-2", AccountID: 7, Severity: alerts.SeverityLow}

	got := toSet(DeliveryGroups(alert))
	if _, ok := got["account:7"]; !ok {
		t.Error("low severity alert must still target its account group")
	}
	if _, ok := got["role:CreditOfficer"]; !ok {
		t.Error("low severity alert must target the credit officer group")
	}
	if _, ok := got["role:Admin"]; ok {
		t.Error("low severity alert must not target the admin group")
	}
}

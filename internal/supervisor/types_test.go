package supervisor

import (
	"strings"
	"testing"
	"time"
)

func TestDecision_SeverityOrder(t *testing.T) {
	order := []Decision{Approved, Modified, Rejected, EmergencyStop}
	for i := 1; i < len(order); i++ {
		if order[i].Severity() <= order[i-1].Severity() {
			t.Fatalf("%s not more severe than %s", order[i], order[i-1])
		}
	}
	if Decision("bogus").Severity() != EmergencyStop.Severity() {
		t.Fatal("unknown decision must rank as emergency_stop")
	}
}

func TestMostSevere(t *testing.T) {
	tests := []struct {
		a, b, want Decision
	}{
		{Approved, Modified, Modified},
		{Rejected, Modified, Rejected},
		{EmergencyStop, Rejected, EmergencyStop},
		{Approved, Approved, Approved},
	}
	for _, tt := range tests {
		if got := MostSevere(tt.a, tt.b); got != tt.want {
			t.Fatalf("MostSevere(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOutcome_Helpers(t *testing.T) {
	out := Outcome{
		Decision:       Rejected,
		Reason:         "Blocked by 2 checks",
		ProcessingTime: 1500 * time.Microsecond,
		Violations:     []Violation{{RuleID: RuleGeofence}, {RuleID: RuleSensorHealth}},
	}
	if out.IsSafe() {
		t.Fatal("rejected outcome is not safe")
	}
	if out.ProcessingTimeMS() != 1.5 {
		t.Fatalf("ms = %v", out.ProcessingTimeMS())
	}
	if ids := out.RuleIDs(); len(ids) != 2 || ids[0] != RuleGeofence || ids[1] != RuleSensorHealth {
		t.Fatalf("rule ids = %v", ids)
	}
	if s := out.String(); !strings.HasPrefix(s, "rejected: Blocked by 2 checks (2 violations") {
		t.Fatalf("string = %q", s)
	}
}

func TestModeFor(t *testing.T) {
	if modeFor(Approved) != ModeNormal || modeFor(Modified) != ModeNormal {
		t.Fatal("approved/modified must map to normal")
	}
	if modeFor(Rejected) != ModeDegraded {
		t.Fatal("rejected must map to degraded")
	}
	if modeFor(EmergencyStop) != ModeEmergency {
		t.Fatal("emergency_stop must map to emergency")
	}
}

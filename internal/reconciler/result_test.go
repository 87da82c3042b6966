package reconciler

import (
	"strings"
	"testing"
)

func TestResult_Counts(t *testing.T) {
	r := NewResult(false)
	r.AddAction(Action{Type: ActionCreate, Status: StatusSuccess, RecordType: "AAAA", Target: "2001:db8::1"})
	r.AddAction(Action{Type: ActionUpdate, Status: StatusSuccess, RecordType: "A", Target: "203.0.113.7"})
	r.AddAction(Action{Type: ActionUpdate, Status: StatusFailed, RecordType: "A", Target: "203.0.113.7", Error: "boom"})
	r.AddAction(Action{Type: ActionSkip, Status: StatusSkipped, RecordType: "AAAA"})
	r.Complete()

	if got := len(r.Created()); got != 1 {
		t.Errorf("Created() = %d, want 1", got)
	}
	if got := len(r.Updated()); got != 1 {
		t.Errorf("Updated() = %d, want 1", got)
	}
	if got := len(r.Failed()); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
	if !r.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
}

func TestResult_DryRunMarksActions(t *testing.T) {
	r := NewResult(true)
	r.AddAction(Action{Type: ActionUpdate, Status: StatusSuccess, RecordType: "A", Target: "203.0.113.7"})

	if !r.Actions[0].DryRun {
		t.Error("expected action to inherit dry-run from the result")
	}
	if got := r.Actions[0].String(); !strings.Contains(got, "dry-run") {
		t.Errorf("expected dry-run marker in %q", got)
	}
}

func TestResult_Summary(t *testing.T) {
	r := NewResult(false)
	r.IPv4 = "203.0.113.7"
	r.AddAction(Action{Type: ActionUpdate, Status: StatusFailed, RecordType: "A", Target: "203.0.113.7", Error: "forbidden"})
	r.Complete()

	summary := r.Summary()
	if !strings.Contains(summary, "203.0.113.7") {
		t.Errorf("expected the IPv4 address in summary: %s", summary)
	}
	if !strings.Contains(summary, "(absent)") {
		t.Errorf("expected the missing IPv6 address to show as absent: %s", summary)
	}
	if !strings.Contains(summary, "forbidden") {
		t.Errorf("expected the failure reason in summary: %s", summary)
	}
}

// Package reconciler keeps a single subdomain's A and AAAA records pointed
// at the host's current public addresses.
package reconciler

import (
	"fmt"
	"strings"
	"time"
)

// ActionType represents the type of reconciliation action.
type ActionType string

const (
	// ActionCreate indicates a record will be/was created.
	ActionCreate ActionType = "create"
	// ActionUpdate indicates a record will be/was updated.
	ActionUpdate ActionType = "update"
	// ActionSkip indicates a record was left alone (no address for its family).
	ActionSkip ActionType = "skip"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusSuccess indicates the action completed successfully.
	StatusSuccess ActionStatus = "success"
	// StatusFailed indicates the action failed.
	StatusFailed ActionStatus = "failed"
	// StatusSkipped indicates the action was skipped (dry-run or nothing to do).
	StatusSkipped ActionStatus = "skipped"
)

// Action represents a single reconciliation action on a DNS record.
type Action struct {
	// Type is the action type (create, update, skip).
	Type ActionType

	// Status is the outcome of the action.
	Status ActionStatus

	// RecordType is "A" or "AAAA".
	RecordType string

	// Target is the address the record points at.
	Target string

	// RecordID is the provider's identifier for the record, when known.
	RecordID string

	// Error contains the error message if Status is StatusFailed.
	Error string

	// DryRun indicates this action was not actually executed.
	DryRun bool
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	status := string(a.Status)
	if a.DryRun && a.Status == StatusSuccess {
		status = "dry-run"
	}

	if a.Error != "" {
		return fmt.Sprintf("[%s] %s %s -> %s: %s",
			status, a.Type, a.RecordType, a.Target, a.Error)
	}

	return fmt.Sprintf("[%s] %s %s -> %s",
		status, a.Type, a.RecordType, a.Target)
}

// Result holds the complete result of one reconcile cycle.
type Result struct {
	// StartTime is when the cycle started.
	StartTime time.Time

	// EndTime is when the cycle completed.
	EndTime time.Time

	// IPv4 and IPv6 are the discovered public addresses, empty when the
	// family was not resolvable this cycle.
	IPv4 string
	IPv6 string

	// Actions contains all actions taken (or planned in dry-run).
	Actions []Action

	// DryRun indicates if this was a dry-run (no changes applied).
	DryRun bool
}

// NewResult creates a new Result with the start time set to now.
func NewResult(dryRun bool) *Result {
	return &Result{
		StartTime: time.Now(),
		Actions:   make([]Action, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total cycle duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(action Action) {
	action.DryRun = r.DryRun
	r.Actions = append(r.Actions, action)
}

// Created returns all successful create actions.
func (r *Result) Created() []Action {
	return r.filterActions(ActionCreate, StatusSuccess)
}

// Updated returns all successful update actions.
func (r *Result) Updated() []Action {
	return r.filterActions(ActionUpdate, StatusSuccess)
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	var failed []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

func (r *Result) filterActions(actionType ActionType, status ActionStatus) []Action {
	var filtered []Action
	for _, a := range r.Actions {
		if a.Type == actionType && a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// HasErrors returns true if any actions failed.
func (r *Result) HasErrors() bool {
	return len(r.Failed()) > 0
}

// Summary returns a human-readable summary of the cycle.
func (r *Result) Summary() string {
	var sb strings.Builder

	mode := "applied"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(&sb, "Cycle complete (%s) in %s\n", mode, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "  IPv4: %s\n", orAbsent(r.IPv4))
	fmt.Fprintf(&sb, "  IPv6: %s\n", orAbsent(r.IPv6))
	fmt.Fprintf(&sb, "  Records created: %d\n", len(r.Created()))
	fmt.Fprintf(&sb, "  Records updated: %d\n", len(r.Updated()))

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed: %d\n", len(r.Failed()))
		for _, a := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", a.String())
		}
	}

	return sb.String()
}

func orAbsent(s string) string {
	if s == "" {
		return "(absent)"
	}
	return s
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIllegalTransitionErrorMessage(t *testing.T) {
	err := IllegalTransitionError{
		Entity:  EntityOrder,
		ID:      "ord-1",
		From:    string(OrderPending),
		To:      string(OrderInProgress),
		Allowed: AllowedOrderTargets(OrderPending),
	}
	msg := err.Error()
	for _, want := range []string{"pending", "in_progress", "accepted", "declined"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	terminal := IllegalTransitionError{Entity: EntityNCR, ID: "n1", From: "closed", To: "review"}
	if !strings.Contains(terminal.Error(), "none") {
		t.Fatalf("terminal message should list no allowed targets: %q", terminal.Error())
	}
}

func TestErrorKindsMatchWithAs(t *testing.T) {
	wrapped := fmt.Errorf("transition order: %w", NotFoundError{Entity: EntityOrder, ID: "x"})
	var nf NotFoundError
	if !errors.As(wrapped, &nf) || nf.ID != "x" {
		t.Fatalf("NotFoundError should survive wrapping: %v", wrapped)
	}
	var conflict ConflictError
	if errors.As(wrapped, &conflict) {
		t.Fatalf("wrong kind matched")
	}
}

func TestConflictErrorCarriesViolations(t *testing.T) {
	err := ConflictError{
		Reason: "schedule overlap",
		Violations: []ScheduleConflict{
			{WorkstationID: "ws-1", ItemA: "a", ItemB: "b"},
			{WorkstationID: "ws-1", ItemA: "a", MaintenanceID: "m1"},
		},
	}
	if !strings.Contains(err.Error(), "2 violations") {
		t.Fatalf("got %q", err.Error())
	}
	if !strings.Contains(err.Violations[1].String(), "maintenance") {
		t.Fatalf("maintenance conflict rendering: %q", err.Violations[1].String())
	}
}

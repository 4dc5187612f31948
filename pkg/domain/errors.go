package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates the referenced entity id is unknown.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IllegalTransitionError indicates the target state is not reachable from
// the entity's current state. It carries the attempted edge and the legal
// targets so callers can surface both.
type IllegalTransitionError struct {
	Entity  EntityType
	ID      string
	From    string
	To      string
	Allowed []string
}

func (e IllegalTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("%s %s: illegal transition %s -> %s (allowed: %s)", e.Entity, e.ID, e.From, e.To, allowed)
}

// ConflictError indicates a concurrent modification, a stale version, or a
// mutation that would violate a multi-row invariant such as schedule
// overlap. Safe to retry with fresh state.
type ConflictError struct {
	Reason     string
	Violations []ScheduleConflict
}

func (e ConflictError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("conflict: %s (%d violations)", e.Reason, len(e.Violations))
	}
	return "conflict: " + e.Reason
}

// NoCapacityError indicates no workstation of the required class exists.
// This is a configuration error, not a transient condition.
type NoCapacityError struct {
	WorkstationClass string
}

func (e NoCapacityError) Error() string {
	return fmt.Sprintf("no workstation of class %q exists", e.WorkstationClass)
}

// ValidationError indicates malformed input, such as a non-positive
// duration or an interval ending before it starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ScheduleConflict describes one detected scheduling violation: either two
// items overlapping on a workstation, or an item overlapping an open
// maintenance window (MaintenanceID set, ItemB empty).
type ScheduleConflict struct {
	WorkstationID string `json:"workstation_id"`
	ItemA         string `json:"item_a"`
	ItemB         string `json:"item_b,omitempty"`
	MaintenanceID string `json:"maintenance_id,omitempty"`
}

func (c ScheduleConflict) String() string {
	if c.MaintenanceID != "" {
		return fmt.Sprintf("workstation %s: item %s overlaps open maintenance %s", c.WorkstationID, c.ItemA, c.MaintenanceID)
	}
	return fmt.Sprintf("workstation %s: items %s and %s overlap", c.WorkstationID, c.ItemA, c.ItemB)
}

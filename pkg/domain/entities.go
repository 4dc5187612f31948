// Package domain defines the persistent entities, state enumerations,
// typed error kinds, and rule evaluation primitives of the mescore
// manufacturing workflow core.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	EntityOrder            EntityType = "order"
	EntityRouting          EntityType = "routing"
	EntityWorkstation      EntityType = "workstation"
	EntityScheduleItem     EntityType = "schedule_item"
	EntityNCR              EntityType = "ncr"
	EntityKanbanCard       EntityType = "kanban_card"
	EntityMaintenanceLog   EntityType = "maintenance_log"
	EntityMaterialStock    EntityType = "material_stock"
	EntityContainer        EntityType = "container"
	EntityQualityCheck     EntityType = "quality_check"
	EntitySPCSeries        EntityType = "spc_series"
	EntityOrderStateChange EntityType = "order_state_change"
)

// OrderState enumerates the production order workflow states.
type OrderState string

// Canonical order states from planning through completion.
const (
	OrderPending     OrderState = "pending"
	OrderAccepted    OrderState = "accepted"
	OrderInProgress  OrderState = "in_progress"
	OrderCompleted   OrderState = "completed"
	OrderDeclined    OrderState = "declined"
	OrderInterrupted OrderState = "interrupted"
	OrderAbandoned   OrderState = "abandoned"
)

// RoutingState enumerates routing (process plan) approval states.
type RoutingState string

// Canonical routing states.
const (
	RoutingDraft    RoutingState = "draft"
	RoutingAccepted RoutingState = "accepted"
	RoutingChecked  RoutingState = "checked"
	RoutingOutdated RoutingState = "outdated"
	RoutingDeclined RoutingState = "declined"
)

// NCRStatus enumerates non-conformance report workflow states. Closed is
// terminal.
type NCRStatus string

// Canonical NCR statuses.
const (
	NCRQuarantine NCRStatus = "quarantine"
	NCRReview     NCRStatus = "review"
	NCRClosed     NCRStatus = "closed"
)

// KanbanStatus enumerates kanban card replenishment states.
type KanbanStatus string

// Canonical kanban statuses; cards cycle indefinitely.
const (
	KanbanFull         KanbanStatus = "full"
	KanbanReplenishing KanbanStatus = "replenishing"
	KanbanEmpty        KanbanStatus = "empty"
)

// MaintenanceType classifies maintenance activities.
type MaintenanceType string

// Supported maintenance activity types.
const (
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceCorrective MaintenanceType = "corrective"
	MaintenanceBreakdown  MaintenanceType = "breakdown"
)

// ValidMaintenanceType reports whether t is a known maintenance type.
func ValidMaintenanceType(t MaintenanceType) bool {
	switch t {
	case MaintenancePreventive, MaintenanceCorrective, MaintenanceBreakdown:
		return true
	}
	return false
}

// ScheduleItemStatus tracks the execution state of a schedule item.
type ScheduleItemStatus string

// Schedule item statuses; cancelled items are ignored by overlap checks.
const (
	ScheduleItemPlanned   ScheduleItemStatus = "planned"
	ScheduleItemCompleted ScheduleItemStatus = "completed"
	ScheduleItemCancelled ScheduleItemStatus = "cancelled"
)

// Disposition classifies the resolution of a non-conformance report.
type Disposition string

// Accepted NCR dispositions.
const (
	DispositionRework           Disposition = "rework"
	DispositionScrap            Disposition = "scrap"
	DispositionUseAsIs          Disposition = "use_as_is"
	DispositionReturnToSupplier Disposition = "return_to_supplier"
)

// ValidDisposition reports whether d is one of the accepted dispositions.
func ValidDisposition(d Disposition) bool {
	switch d {
	case DispositionRework, DispositionScrap, DispositionUseAsIs, DispositionReturnToSupplier:
		return true
	}
	return false
}

// Actor identifies the authenticated caller performing an operation. The
// core trusts the identity it is handed; authentication happens upstream.
type Actor struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// Base carries the common identity and bookkeeping fields of every stored
// record. Version increments on each successful update and backs the
// optimistic concurrency check.
type Base struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is a unit of production work tracked from planning to completion.
type Order struct {
	Base
	Number          string          `json:"number"`
	Name            string          `json:"name"`
	ProductID       string          `json:"product_id"`
	RoutingID       *string         `json:"routing_id"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity"`
	DoneQuantity    decimal.Decimal `json:"done_quantity"`
	Deadline        *time.Time      `json:"deadline"`
	StartDate       *time.Time      `json:"start_date"`
	FinishDate      *time.Time      `json:"finish_date"`
	State           OrderState      `json:"state"`
}

// OrderStateChange is an append-only audit record of one order transition.
type OrderStateChange struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	SourceState OrderState `json:"source_state"`
	TargetState OrderState `json:"target_state"`
	Actor       string     `json:"actor"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// ComponentLink references a product consumed or produced by an operation.
type ComponentLink struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Operation is one step of a routing: a duration estimate, a required
// workstation class, and the component links it consumes and produces.
type Operation struct {
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	Name             string          `json:"name"`
	DurationSeconds  int64           `json:"duration_seconds"`
	BufferSeconds    int64           `json:"buffer_seconds"`
	WorkstationClass string          `json:"workstation_class"`
	Inputs           []ComponentLink `json:"inputs,omitempty"`
	Outputs          []ComponentLink `json:"outputs,omitempty"`
}

// Routing is the ordered sequence of operations used to produce a product.
// At most one routing per product carries the master flag at any time.
type Routing struct {
	Base
	Number     string       `json:"number"`
	Name       string       `json:"name"`
	ProductID  string       `json:"product_id"`
	State      RoutingState `json:"state"`
	Master     bool         `json:"master"`
	Operations []Operation  `json:"operations"`
}

// OperationByID returns the operation with the given id, if present.
func (r Routing) OperationByID(id string) (Operation, bool) {
	for _, op := range r.Operations {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}

// Workstation is a schedulable resource of a given class. Capacity is the
// number of concurrent schedule items allowed; zero means the default of one.
type Workstation struct {
	Base
	Number   string `json:"number"`
	Name     string `json:"name"`
	Class    string `json:"class"`
	Capacity int    `json:"capacity"`
	Active   bool   `json:"active"`
}

// EffectiveCapacity returns the concurrent item limit, defaulting to 1.
func (w Workstation) EffectiveCapacity() int {
	if w.Capacity <= 0 {
		return 1
	}
	return w.Capacity
}

// ScheduleItem assigns one operation of one order to a workstation over the
// half-open interval [PlannedStart, PlannedEnd). Non-cancelled items on the
// same workstation must never exceed the workstation capacity at any
// instant.
type ScheduleItem struct {
	Base
	OrderID       string             `json:"order_id"`
	RoutingID     string             `json:"routing_id"`
	OperationID   string             `json:"operation_id"`
	SequenceIndex int                `json:"sequence_index"`
	WorkstationID string             `json:"workstation_id"`
	PlannedStart  time.Time          `json:"planned_start"`
	PlannedEnd    time.Time          `json:"planned_end"`
	BufferSeconds int64              `json:"buffer_seconds"`
	Locked        bool               `json:"locked"`
	Status        ScheduleItemStatus `json:"status"`
}

// Overlaps reports whether the planned intervals of two items intersect.
// Intervals are half-open, so items that merely touch do not overlap.
func (s ScheduleItem) Overlaps(other ScheduleItem) bool {
	return s.PlannedStart.Before(other.PlannedEnd) && s.PlannedEnd.After(other.PlannedStart)
}

// NCR is a non-conformance report tracking a quality deviation from
// quarantine through disposition to closure.
type NCR struct {
	Base
	Number      string       `json:"number"`
	OrderID     *string      `json:"order_id"`
	BatchRef    string       `json:"batch_ref,omitempty"`
	Description string       `json:"description"`
	Status      NCRStatus    `json:"status"`
	Disposition *Disposition `json:"disposition"`
}

// KanbanCard signals a replenishment cycle for a material at a location.
// Cards are deactivated, never destroyed.
type KanbanCard struct {
	Base
	MaterialID      string          `json:"material_id"`
	Location        string          `json:"location"`
	Capacity        decimal.Decimal `json:"capacity"`
	Status          KanbanStatus    `json:"status"`
	LastReplenished *time.Time      `json:"last_replenished"`
	Active          bool            `json:"active"`
}

// MaintenanceLog records maintenance on a workstation. An open log (nil
// EndTime) acts as an exclusive scheduling block on that workstation.
type MaintenanceLog struct {
	Base
	WorkstationID string          `json:"workstation_id"`
	Type          MaintenanceType `json:"type"`
	Description   string          `json:"description"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       *time.Time      `json:"end_time"`
	Technician    string          `json:"technician"`
}

// Open reports whether the maintenance activity is still ongoing.
func (m MaintenanceLog) Open() bool { return m.EndTime == nil }

// DurationHours returns the elapsed maintenance time, zero while open.
func (m MaintenanceLog) DurationHours() float64 {
	if m.EndTime == nil {
		return 0
	}
	return m.EndTime.Sub(m.StartTime).Hours()
}

// MaterialStock tracks the on-hand quantity of a material at a location.
type MaterialStock struct {
	Base
	MaterialID   string          `json:"material_id"`
	LocationType string          `json:"location_type"`
	LocationName string          `json:"location_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	BatchNumber  string          `json:"batch_number,omitempty"`
}

// Container is a physical carrier (bin, tote, pallet) holding material.
type Container struct {
	Base
	Code       string          `json:"code"`
	Type       string          `json:"type"`
	MaterialID *string         `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Location   string          `json:"location"`
}

// Empty reports whether the container currently holds no material.
func (c Container) Empty() bool { return c.Quantity.IsZero() }

// QualityCheckType distinguishes pass/fail checks from measured ones.
type QualityCheckType string

// Quality check evaluation modes.
const (
	QualityCheckPassFail QualityCheckType = "pass_fail"
	QualityCheckVariable QualityCheckType = "variable"
)

// QualityCheck records one inspection result for an order. Variable
// checks carry the measured value and the nominal/tolerance band it is
// judged against; pass/fail checks set Passed directly.
type QualityCheck struct {
	Base
	OrderID       string           `json:"order_id"`
	Parameter     string           `json:"parameter"`
	CheckType     QualityCheckType `json:"check_type"`
	ResultValue   string           `json:"result_value"`
	MeasuredValue *float64         `json:"measured_value,omitempty"`
	Nominal       *float64         `json:"nominal,omitempty"`
	Tolerance     *float64         `json:"tolerance,omitempty"`
	Passed        bool             `json:"passed"`
	Mandatory     bool             `json:"mandatory"`
	Inspector     string           `json:"inspector"`
	NCRID         *string          `json:"ncr_id"`
}

// WithinTolerance reports whether the measured value falls inside the
// nominal band. It is false when any of the three values is absent.
func (q QualityCheck) WithinTolerance() bool {
	if q.MeasuredValue == nil || q.Nominal == nil || q.Tolerance == nil {
		return false
	}
	diff := *q.MeasuredValue - *q.Nominal
	if diff < 0 {
		diff = -diff
	}
	return diff <= *q.Tolerance
}

// Measurement is one SPC data point.
type Measurement struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	MachineID string    `json:"machine_id,omitempty"`
}

// SPCSeries holds the measurement history and derived Shewhart control
// limits for one named process parameter. Limits are recomputed from the
// most recent WindowSize points after every recorded measurement; earlier
// points are never re-evaluated against the new limits.
type SPCSeries struct {
	Base
	Parameter   string        `json:"parameter"`
	WindowSize  int           `json:"window_size"`
	Points      []Measurement `json:"points"`
	Center      float64       `json:"center"`
	Sigma       float64       `json:"sigma"`
	UCL         float64       `json:"ucl"`
	LCL         float64       `json:"lcl"`
	LimitsValid bool          `json:"limits_valid"`
}

// Window returns the most recent WindowSize points (all points when fewer).
func (s SPCSeries) Window() []Measurement {
	n := s.WindowSize
	if n <= 0 || len(s.Points) <= n {
		return s.Points
	}
	return s.Points[len(s.Points)-n:]
}

// Action indicates the type of modification captured in a Change.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes one mutation applied within a transaction. Before and
// After hold typed entity values (nil for create/delete respectively).
type Change struct {
	Entity EntityType `json:"entity"`
	Action Action     `json:"action"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mescore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Order aliases domain.Order for in-memory persistence operations.
	Order = domain.Order
	// Routing aliases domain.Routing.
	Routing = domain.Routing
	// Workstation aliases domain.Workstation.
	Workstation = domain.Workstation
	// ScheduleItem aliases domain.ScheduleItem.
	ScheduleItem = domain.ScheduleItem
	// NCR aliases domain.NCR.
	NCR = domain.NCR
	// KanbanCard aliases domain.KanbanCard.
	KanbanCard = domain.KanbanCard
	// MaintenanceLog aliases domain.MaintenanceLog.
	MaintenanceLog = domain.MaintenanceLog
	// MaterialStock aliases domain.MaterialStock.
	MaterialStock = domain.MaterialStock
	// Container aliases domain.Container.
	Container = domain.Container
	// QualityCheck aliases domain.QualityCheck.
	QualityCheck = domain.QualityCheck
	// SPCSeries aliases domain.SPCSeries.
	SPCSeries = domain.SPCSeries
	// OrderStateChange aliases domain.OrderStateChange.
	OrderStateChange = domain.OrderStateChange
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	orders       map[string]Order
	routings     map[string]Routing
	workstations map[string]Workstation
	items        map[string]ScheduleItem
	ncrs         map[string]NCR
	kanbans      map[string]KanbanCard
	maintenance  map[string]MaintenanceLog
	stocks       map[string]MaterialStock
	containers   map[string]Container
	checks       map[string]QualityCheck
	spc          map[string]SPCSeries
	orderAudit   map[string]OrderStateChange
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Orders       map[string]Order            `json:"orders"`
	Routings     map[string]Routing          `json:"routings"`
	Workstations map[string]Workstation      `json:"workstations"`
	Items        map[string]ScheduleItem     `json:"schedule_items"`
	NCRs         map[string]NCR              `json:"ncrs"`
	Kanbans      map[string]KanbanCard       `json:"kanban_cards"`
	Maintenance  map[string]MaintenanceLog   `json:"maintenance_logs"`
	Stocks       map[string]MaterialStock    `json:"material_stocks"`
	Containers   map[string]Container        `json:"containers"`
	Checks       map[string]QualityCheck     `json:"quality_checks"`
	SPC          map[string]SPCSeries        `json:"spc_series"`
	OrderAudit   map[string]OrderStateChange `json:"order_state_changes"`
}

func newMemoryState() memoryState {
	return memoryState{
		orders:       make(map[string]Order),
		routings:     make(map[string]Routing),
		workstations: make(map[string]Workstation),
		items:        make(map[string]ScheduleItem),
		ncrs:         make(map[string]NCR),
		kanbans:      make(map[string]KanbanCard),
		maintenance:  make(map[string]MaintenanceLog),
		stocks:       make(map[string]MaterialStock),
		containers:   make(map[string]Container),
		checks:       make(map[string]QualityCheck),
		spc:          make(map[string]SPCSeries),
		orderAudit:   make(map[string]OrderStateChange),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Orders:       make(map[string]Order, len(state.orders)),
		Routings:     make(map[string]Routing, len(state.routings)),
		Workstations: make(map[string]Workstation, len(state.workstations)),
		Items:        make(map[string]ScheduleItem, len(state.items)),
		NCRs:         make(map[string]NCR, len(state.ncrs)),
		Kanbans:      make(map[string]KanbanCard, len(state.kanbans)),
		Maintenance:  make(map[string]MaintenanceLog, len(state.maintenance)),
		Stocks:       make(map[string]MaterialStock, len(state.stocks)),
		Containers:   make(map[string]Container, len(state.containers)),
		Checks:       make(map[string]QualityCheck, len(state.checks)),
		SPC:          make(map[string]SPCSeries, len(state.spc)),
		OrderAudit:   make(map[string]OrderStateChange, len(state.orderAudit)),
	}
	for k, v := range state.orders {
		s.Orders[k] = cloneOrder(v)
	}
	for k, v := range state.routings {
		s.Routings[k] = cloneRouting(v)
	}
	for k, v := range state.workstations {
		s.Workstations[k] = cloneWorkstation(v)
	}
	for k, v := range state.items {
		s.Items[k] = cloneScheduleItem(v)
	}
	for k, v := range state.ncrs {
		s.NCRs[k] = cloneNCR(v)
	}
	for k, v := range state.kanbans {
		s.Kanbans[k] = cloneKanbanCard(v)
	}
	for k, v := range state.maintenance {
		s.Maintenance[k] = cloneMaintenanceLog(v)
	}
	for k, v := range state.stocks {
		s.Stocks[k] = cloneMaterialStock(v)
	}
	for k, v := range state.containers {
		s.Containers[k] = cloneContainer(v)
	}
	for k, v := range state.checks {
		s.Checks[k] = cloneQualityCheck(v)
	}
	for k, v := range state.spc {
		s.SPC[k] = cloneSPCSeries(v)
	}
	for k, v := range state.orderAudit {
		s.OrderAudit[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Orders {
		state.orders[k] = cloneOrder(v)
	}
	for k, v := range s.Routings {
		state.routings[k] = cloneRouting(v)
	}
	for k, v := range s.Workstations {
		state.workstations[k] = cloneWorkstation(v)
	}
	for k, v := range s.Items {
		state.items[k] = cloneScheduleItem(v)
	}
	for k, v := range s.NCRs {
		state.ncrs[k] = cloneNCR(v)
	}
	for k, v := range s.Kanbans {
		state.kanbans[k] = cloneKanbanCard(v)
	}
	for k, v := range s.Maintenance {
		state.maintenance[k] = cloneMaintenanceLog(v)
	}
	for k, v := range s.Stocks {
		state.stocks[k] = cloneMaterialStock(v)
	}
	for k, v := range s.Containers {
		state.containers[k] = cloneContainer(v)
	}
	for k, v := range s.Checks {
		state.checks[k] = cloneQualityCheck(v)
	}
	for k, v := range s.SPC {
		state.spc[k] = cloneSPCSeries(v)
	}
	for k, v := range s.OrderAudit {
		state.orderAudit[k] = v
	}
	return state
}

// migrateSnapshot repairs snapshots written by earlier builds: nil buckets
// become empty maps and dangling references are dropped.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Orders == nil {
		snapshot.Orders = map[string]Order{}
	}
	if snapshot.Routings == nil {
		snapshot.Routings = map[string]Routing{}
	}
	if snapshot.Workstations == nil {
		snapshot.Workstations = map[string]Workstation{}
	}
	if snapshot.Items == nil {
		snapshot.Items = map[string]ScheduleItem{}
	}
	if snapshot.NCRs == nil {
		snapshot.NCRs = map[string]NCR{}
	}
	if snapshot.Kanbans == nil {
		snapshot.Kanbans = map[string]KanbanCard{}
	}
	if snapshot.Maintenance == nil {
		snapshot.Maintenance = map[string]MaintenanceLog{}
	}
	if snapshot.Stocks == nil {
		snapshot.Stocks = map[string]MaterialStock{}
	}
	if snapshot.Containers == nil {
		snapshot.Containers = map[string]Container{}
	}
	if snapshot.Checks == nil {
		snapshot.Checks = map[string]QualityCheck{}
	}
	if snapshot.SPC == nil {
		snapshot.SPC = map[string]SPCSeries{}
	}
	if snapshot.OrderAudit == nil {
		snapshot.OrderAudit = map[string]OrderStateChange{}
	}

	orderExists := func(id string) bool {
		_, ok := snapshot.Orders[id]
		return ok
	}
	workstationExists := func(id string) bool {
		_, ok := snapshot.Workstations[id]
		return ok
	}
	routingExists := func(id string) bool {
		_, ok := snapshot.Routings[id]
		return ok
	}

	for id, item := range snapshot.Items {
		if !orderExists(item.OrderID) || !workstationExists(item.WorkstationID) {
			delete(snapshot.Items, id)
		}
	}
	for id, log := range snapshot.Maintenance {
		if !workstationExists(log.WorkstationID) {
			delete(snapshot.Maintenance, id)
		}
	}
	for id, order := range snapshot.Orders {
		if order.RoutingID != nil && !routingExists(*order.RoutingID) {
			order.RoutingID = nil
			snapshot.Orders[id] = order
		}
	}
	for id, audit := range snapshot.OrderAudit {
		if !orderExists(audit.OrderID) {
			delete(snapshot.OrderAudit, id)
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	for k, v := range s.routings {
		cloned.routings[k] = cloneRouting(v)
	}
	for k, v := range s.workstations {
		cloned.workstations[k] = cloneWorkstation(v)
	}
	for k, v := range s.items {
		cloned.items[k] = cloneScheduleItem(v)
	}
	for k, v := range s.ncrs {
		cloned.ncrs[k] = cloneNCR(v)
	}
	for k, v := range s.kanbans {
		cloned.kanbans[k] = cloneKanbanCard(v)
	}
	for k, v := range s.maintenance {
		cloned.maintenance[k] = cloneMaintenanceLog(v)
	}
	for k, v := range s.stocks {
		cloned.stocks[k] = cloneMaterialStock(v)
	}
	for k, v := range s.containers {
		cloned.containers[k] = cloneContainer(v)
	}
	for k, v := range s.checks {
		cloned.checks[k] = cloneQualityCheck(v)
	}
	for k, v := range s.spc {
		cloned.spc[k] = cloneSPCSeries(v)
	}
	for k, v := range s.orderAudit {
		cloned.orderAudit[k] = v
	}
	return cloned
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func cloneOrder(o Order) Order {
	cp := o
	cp.RoutingID = cloneStringPtr(o.RoutingID)
	cp.Deadline = cloneTimePtr(o.Deadline)
	cp.StartDate = cloneTimePtr(o.StartDate)
	cp.FinishDate = cloneTimePtr(o.FinishDate)
	return cp
}

func cloneRouting(r Routing) Routing {
	cp := r
	if len(r.Operations) != 0 {
		cp.Operations = make([]domain.Operation, len(r.Operations))
		for i, op := range r.Operations {
			opCp := op
			opCp.Inputs = append([]domain.ComponentLink(nil), op.Inputs...)
			opCp.Outputs = append([]domain.ComponentLink(nil), op.Outputs...)
			cp.Operations[i] = opCp
		}
	}
	return cp
}

func cloneWorkstation(w Workstation) Workstation { return w }

func cloneScheduleItem(i ScheduleItem) ScheduleItem { return i }

func cloneNCR(n NCR) NCR {
	cp := n
	cp.OrderID = cloneStringPtr(n.OrderID)
	if n.Disposition != nil {
		d := *n.Disposition
		cp.Disposition = &d
	}
	return cp
}

func cloneKanbanCard(k KanbanCard) KanbanCard {
	cp := k
	cp.LastReplenished = cloneTimePtr(k.LastReplenished)
	return cp
}

func cloneMaintenanceLog(m MaintenanceLog) MaintenanceLog {
	cp := m
	cp.EndTime = cloneTimePtr(m.EndTime)
	return cp
}

func cloneMaterialStock(s MaterialStock) MaterialStock { return s }

func cloneContainer(c Container) Container {
	cp := c
	cp.MaterialID = cloneStringPtr(c.MaterialID)
	return cp
}

func cloneQualityCheck(q QualityCheck) QualityCheck {
	cp := q
	cp.MeasuredValue = cloneFloatPtr(q.MeasuredValue)
	cp.Nominal = cloneFloatPtr(q.Nominal)
	cp.Tolerance = cloneFloatPtr(q.Tolerance)
	cp.NCRID = cloneStringPtr(q.NCRID)
	return cp
}

func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func cloneSPCSeries(s SPCSeries) SPCSeries {
	cp := s
	cp.Points = append([]domain.Measurement(nil), s.Points...)
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// SetNowFunc overrides the time provider, used by tests for deterministic stamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RestoreState replaces the store state with the snapshot. The context is
// unused here but honored by backends that persist the restored state.
func (s *Store) RestoreState(_ context.Context, snapshot Snapshot) error {
	s.ImportState(snapshot)
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateOrder stores a new order within the transaction.
func (tx *transaction) CreateOrder(o Order) (Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if o.RoutingID != nil {
		if _, ok := tx.state.routings[*o.RoutingID]; !ok {
			return Order{}, fmt.Errorf("routing %q not found", *o.RoutingID)
		}
	}
	o.Version = 1
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an order using the provided mutator function.
func (tx *transaction) UpdateOrder(id string, mutator func(*Order) error) (Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %q not found", id)
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return Order{}, err
	}
	if current.RoutingID != nil {
		if _, ok := tx.state.routings[*current.RoutingID]; !ok {
			return Order{}, fmt.Errorf("routing %q not found", *current.RoutingID)
		}
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// DeleteOrder removes an order and its schedule items from the transaction
// state. Deletion is refused while production records reference the order.
func (tx *transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return fmt.Errorf("order %q not found", id)
	}
	for _, check := range tx.state.checks {
		if check.OrderID == id {
			return fmt.Errorf("order %q still referenced by quality check %q", id, check.ID)
		}
	}
	for _, audit := range tx.state.orderAudit {
		if audit.OrderID == id {
			return fmt.Errorf("order %q still referenced by state change %q", id, audit.ID)
		}
	}
	for itemID, item := range tx.state.items {
		if item.OrderID != id {
			continue
		}
		delete(tx.state.items, itemID)
		tx.recordChange(Change{Entity: domain.EntityScheduleItem, Action: domain.ActionDelete, Before: cloneScheduleItem(item)})
	}
	delete(tx.state.orders, id)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// CreateRouting stores a new routing.
func (tx *transaction) CreateRouting(r Routing) (Routing, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.routings[r.ID]; exists {
		return Routing{}, fmt.Errorf("routing %q already exists", r.ID)
	}
	for i := range r.Operations {
		if r.Operations[i].ID == "" {
			r.Operations[i].ID = tx.store.newID()
		}
	}
	r.Version = 1
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.routings[r.ID] = cloneRouting(r)
	tx.recordChange(Change{Entity: domain.EntityRouting, Action: domain.ActionCreate, After: cloneRouting(r)})
	return cloneRouting(r), nil
}

// UpdateRouting mutates an existing routing.
func (tx *transaction) UpdateRouting(id string, mutator func(*Routing) error) (Routing, error) {
	current, ok := tx.state.routings[id]
	if !ok {
		return Routing{}, fmt.Errorf("routing %q not found", id)
	}
	before := cloneRouting(current)
	if err := mutator(&current); err != nil {
		return Routing{}, err
	}
	for i := range current.Operations {
		if current.Operations[i].ID == "" {
			current.Operations[i].ID = tx.store.newID()
		}
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.routings[id] = cloneRouting(current)
	tx.recordChange(Change{Entity: domain.EntityRouting, Action: domain.ActionUpdate, Before: before, After: cloneRouting(current)})
	return cloneRouting(current), nil
}

// DeleteRouting removes a routing from state. Reference integrity against
// non-terminal orders is enforced by a commit rule.
func (tx *transaction) DeleteRouting(id string) error {
	current, ok := tx.state.routings[id]
	if !ok {
		return fmt.Errorf("routing %q not found", id)
	}
	delete(tx.state.routings, id)
	tx.recordChange(Change{Entity: domain.EntityRouting, Action: domain.ActionDelete, Before: cloneRouting(current)})
	return nil
}

// CreateWorkstation stores a new workstation.
func (tx *transaction) CreateWorkstation(w Workstation) (Workstation, error) {
	if w.ID == "" {
		w.ID = tx.store.newID()
	}
	if _, exists := tx.state.workstations[w.ID]; exists {
		return Workstation{}, fmt.Errorf("workstation %q already exists", w.ID)
	}
	w.Version = 1
	w.CreatedAt = tx.now
	w.UpdatedAt = tx.now
	tx.state.workstations[w.ID] = cloneWorkstation(w)
	tx.recordChange(Change{Entity: domain.EntityWorkstation, Action: domain.ActionCreate, After: cloneWorkstation(w)})
	return cloneWorkstation(w), nil
}

// UpdateWorkstation mutates an existing workstation.
func (tx *transaction) UpdateWorkstation(id string, mutator func(*Workstation) error) (Workstation, error) {
	current, ok := tx.state.workstations[id]
	if !ok {
		return Workstation{}, fmt.Errorf("workstation %q not found", id)
	}
	before := cloneWorkstation(current)
	if err := mutator(&current); err != nil {
		return Workstation{}, err
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.workstations[id] = cloneWorkstation(current)
	tx.recordChange(Change{Entity: domain.EntityWorkstation, Action: domain.ActionUpdate, Before: before, After: cloneWorkstation(current)})
	return cloneWorkstation(current), nil
}

// DeleteWorkstation removes a workstation.
func (tx *transaction) DeleteWorkstation(id string) error {
	current, ok := tx.state.workstations[id]
	if !ok {
		return fmt.Errorf("workstation %q not found", id)
	}
	for _, item := range tx.state.items {
		if item.WorkstationID == id {
			return fmt.Errorf("workstation %q still referenced by schedule item %q", id, item.ID)
		}
	}
	for _, log := range tx.state.maintenance {
		if log.WorkstationID == id {
			return fmt.Errorf("workstation %q still referenced by maintenance log %q", id, log.ID)
		}
	}
	delete(tx.state.workstations, id)
	tx.recordChange(Change{Entity: domain.EntityWorkstation, Action: domain.ActionDelete, Before: cloneWorkstation(current)})
	return nil
}

// CreateScheduleItem stores a new schedule item.
func (tx *transaction) CreateScheduleItem(i ScheduleItem) (ScheduleItem, error) {
	if i.ID == "" {
		i.ID = tx.store.newID()
	}
	if _, exists := tx.state.items[i.ID]; exists {
		return ScheduleItem{}, fmt.Errorf("schedule item %q already exists", i.ID)
	}
	if _, ok := tx.state.orders[i.OrderID]; !ok {
		return ScheduleItem{}, fmt.Errorf("order %q not found", i.OrderID)
	}
	if _, ok := tx.state.workstations[i.WorkstationID]; !ok {
		return ScheduleItem{}, fmt.Errorf("workstation %q not found", i.WorkstationID)
	}
	if !i.PlannedEnd.After(i.PlannedStart) {
		return ScheduleItem{}, fmt.Errorf("schedule item interval must have positive length")
	}
	if i.Status == "" {
		i.Status = domain.ScheduleItemPlanned
	}
	i.Version = 1
	i.CreatedAt = tx.now
	i.UpdatedAt = tx.now
	tx.state.items[i.ID] = cloneScheduleItem(i)
	tx.recordChange(Change{Entity: domain.EntityScheduleItem, Action: domain.ActionCreate, After: cloneScheduleItem(i)})
	return cloneScheduleItem(i), nil
}

// UpdateScheduleItem mutates an existing schedule item.
func (tx *transaction) UpdateScheduleItem(id string, mutator func(*ScheduleItem) error) (ScheduleItem, error) {
	current, ok := tx.state.items[id]
	if !ok {
		return ScheduleItem{}, fmt.Errorf("schedule item %q not found", id)
	}
	before := cloneScheduleItem(current)
	if err := mutator(&current); err != nil {
		return ScheduleItem{}, err
	}
	if !current.PlannedEnd.After(current.PlannedStart) {
		return ScheduleItem{}, fmt.Errorf("schedule item interval must have positive length")
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.items[id] = cloneScheduleItem(current)
	tx.recordChange(Change{Entity: domain.EntityScheduleItem, Action: domain.ActionUpdate, Before: before, After: cloneScheduleItem(current)})
	return cloneScheduleItem(current), nil
}

// DeleteScheduleItem removes a schedule item.
func (tx *transaction) DeleteScheduleItem(id string) error {
	current, ok := tx.state.items[id]
	if !ok {
		return fmt.Errorf("schedule item %q not found", id)
	}
	delete(tx.state.items, id)
	tx.recordChange(Change{Entity: domain.EntityScheduleItem, Action: domain.ActionDelete, Before: cloneScheduleItem(current)})
	return nil
}

// CreateNCR stores a new non-conformance report.
func (tx *transaction) CreateNCR(n NCR) (NCR, error) {
	if n.ID == "" {
		n.ID = tx.store.newID()
	}
	if _, exists := tx.state.ncrs[n.ID]; exists {
		return NCR{}, fmt.Errorf("ncr %q already exists", n.ID)
	}
	if n.OrderID != nil {
		if _, ok := tx.state.orders[*n.OrderID]; !ok {
			return NCR{}, fmt.Errorf("order %q not found", *n.OrderID)
		}
	}
	n.Version = 1
	n.CreatedAt = tx.now
	n.UpdatedAt = tx.now
	tx.state.ncrs[n.ID] = cloneNCR(n)
	tx.recordChange(Change{Entity: domain.EntityNCR, Action: domain.ActionCreate, After: cloneNCR(n)})
	return cloneNCR(n), nil
}

// UpdateNCR mutates an existing NCR.
func (tx *transaction) UpdateNCR(id string, mutator func(*NCR) error) (NCR, error) {
	current, ok := tx.state.ncrs[id]
	if !ok {
		return NCR{}, fmt.Errorf("ncr %q not found", id)
	}
	before := cloneNCR(current)
	if err := mutator(&current); err != nil {
		return NCR{}, err
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.ncrs[id] = cloneNCR(current)
	tx.recordChange(Change{Entity: domain.EntityNCR, Action: domain.ActionUpdate, Before: before, After: cloneNCR(current)})
	return cloneNCR(current), nil
}

// DeleteNCR removes an NCR.
func (tx *transaction) DeleteNCR(id string) error {
	current, ok := tx.state.ncrs[id]
	if !ok {
		return fmt.Errorf("ncr %q not found", id)
	}
	delete(tx.state.ncrs, id)
	tx.recordChange(Change{Entity: domain.EntityNCR, Action: domain.ActionDelete, Before: cloneNCR(current)})
	return nil
}

// CreateKanbanCard stores a new kanban card.
func (tx *transaction) CreateKanbanCard(k KanbanCard) (KanbanCard, error) {
	if k.ID == "" {
		k.ID = tx.store.newID()
	}
	if _, exists := tx.state.kanbans[k.ID]; exists {
		return KanbanCard{}, fmt.Errorf("kanban card %q already exists", k.ID)
	}
	k.Version = 1
	k.CreatedAt = tx.now
	k.UpdatedAt = tx.now
	tx.state.kanbans[k.ID] = cloneKanbanCard(k)
	tx.recordChange(Change{Entity: domain.EntityKanbanCard, Action: domain.ActionCreate, After: cloneKanbanCard(k)})
	return cloneKanbanCard(k), nil
}

// UpdateKanbanCard mutates an existing kanban card.
func (tx *transaction) UpdateKanbanCard(id string, mutator func(*KanbanCard) error) (KanbanCard, error) {
	current, ok := tx.state.kanbans[id]
	if !ok {
		return KanbanCard{}, fmt.Errorf("kanban card %q not found", id)
	}
	before := cloneKanbanCard(current)
	if err := mutator(&current); err != nil {
		return KanbanCard{}, err
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.kanbans[id] = cloneKanbanCard(current)
	tx.recordChange(Change{Entity: domain.EntityKanbanCard, Action: domain.ActionUpdate, Before: before, After: cloneKanbanCard(current)})
	return cloneKanbanCard(current), nil
}

// DeleteKanbanCard removes a kanban card.
func (tx *transaction) DeleteKanbanCard(id string) error {
	current, ok := tx.state.kanbans[id]
	if !ok {
		return fmt.Errorf("kanban card %q not found", id)
	}
	delete(tx.state.kanbans, id)
	tx.recordChange(Change{Entity: domain.EntityKanbanCard, Action: domain.ActionDelete, Before: cloneKanbanCard(current)})
	return nil
}

// CreateMaintenanceLog stores a new maintenance log.
func (tx *transaction) CreateMaintenanceLog(m MaintenanceLog) (MaintenanceLog, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.maintenance[m.ID]; exists {
		return MaintenanceLog{}, fmt.Errorf("maintenance log %q already exists", m.ID)
	}
	if _, ok := tx.state.workstations[m.WorkstationID]; !ok {
		return MaintenanceLog{}, fmt.Errorf("workstation %q not found", m.WorkstationID)
	}
	m.Version = 1
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.maintenance[m.ID] = cloneMaintenanceLog(m)
	tx.recordChange(Change{Entity: domain.EntityMaintenanceLog, Action: domain.ActionCreate, After: cloneMaintenanceLog(m)})
	return cloneMaintenanceLog(m), nil
}

// UpdateMaintenanceLog mutates an existing maintenance log.
func (tx *transaction) UpdateMaintenanceLog(id string, mutator func(*MaintenanceLog) error) (MaintenanceLog, error) {
	current, ok := tx.state.maintenance[id]
	if !ok {
		return MaintenanceLog{}, fmt.Errorf("maintenance log %q not found", id)
	}
	before := cloneMaintenanceLog(current)
	if err := mutator(&current); err != nil {
		return MaintenanceLog{}, err
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.maintenance[id] = cloneMaintenanceLog(current)
	tx.recordChange(Change{Entity: domain.EntityMaintenanceLog, Action: domain.ActionUpdate, Before: before, After: cloneMaintenanceLog(current)})
	return cloneMaintenanceLog(current), nil
}

// DeleteMaintenanceLog removes a maintenance log.
func (tx *transaction) DeleteMaintenanceLog(id string) error {
	current, ok := tx.state.maintenance[id]
	if !ok {
		return fmt.Errorf("maintenance log %q not found", id)
	}
	delete(tx.state.maintenance, id)
	tx.recordChange(Change{Entity: domain.EntityMaintenanceLog, Action: domain.ActionDelete, Before: cloneMaintenanceLog(current)})
	return nil
}

// CreateMaterialStock stores a new stock record.
func (tx *transaction) CreateMaterialStock(s MaterialStock) (MaterialStock, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.stocks[s.ID]; exists {
		return MaterialStock{}, fmt.Errorf("material stock %q already exists", s.ID)
	}
	if s.Quantity.IsNegative() {
		return MaterialStock{}, fmt.Errorf("stock quantity must not be negative")
	}
	s.Version = 1
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.stocks[s.ID] = cloneMaterialStock(s)
	tx.recordChange(Change{Entity: domain.EntityMaterialStock, Action: domain.ActionCreate, After: cloneMaterialStock(s)})
	return cloneMaterialStock(s), nil
}

// UpdateMaterialStock mutates an existing stock record.
func (tx *transaction) UpdateMaterialStock(id string, mutator func(*MaterialStock) error) (MaterialStock, error) {
	current, ok := tx.state.stocks[id]
	if !ok {
		return MaterialStock{}, fmt.Errorf("material stock %q not found", id)
	}
	before := cloneMaterialStock(current)
	if err := mutator(&current); err != nil {
		return MaterialStock{}, err
	}
	if current.Quantity.IsNegative() {
		return MaterialStock{}, fmt.Errorf("stock quantity must not be negative")
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.stocks[id] = cloneMaterialStock(current)
	tx.recordChange(Change{Entity: domain.EntityMaterialStock, Action: domain.ActionUpdate, Before: before, After: cloneMaterialStock(current)})
	return cloneMaterialStock(current), nil
}

// DeleteMaterialStock removes a stock record.
func (tx *transaction) DeleteMaterialStock(id string) error {
	current, ok := tx.state.stocks[id]
	if !ok {
		return fmt.Errorf("material stock %q not found", id)
	}
	delete(tx.state.stocks, id)
	tx.recordChange(Change{Entity: domain.EntityMaterialStock, Action: domain.ActionDelete, Before: cloneMaterialStock(current)})
	return nil
}

// CreateContainer stores a new container.
func (tx *transaction) CreateContainer(c Container) (Container, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.containers[c.ID]; exists {
		return Container{}, fmt.Errorf("container %q already exists", c.ID)
	}
	if c.Quantity.IsNegative() {
		return Container{}, fmt.Errorf("container quantity must not be negative")
	}
	c.Version = 1
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.containers[c.ID] = cloneContainer(c)
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionCreate, After: cloneContainer(c)})
	return cloneContainer(c), nil
}

// UpdateContainer mutates an existing container.
func (tx *transaction) UpdateContainer(id string, mutator func(*Container) error) (Container, error) {
	current, ok := tx.state.containers[id]
	if !ok {
		return Container{}, fmt.Errorf("container %q not found", id)
	}
	before := cloneContainer(current)
	if err := mutator(&current); err != nil {
		return Container{}, err
	}
	if current.Quantity.IsNegative() {
		return Container{}, fmt.Errorf("container quantity must not be negative")
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.containers[id] = cloneContainer(current)
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionUpdate, Before: before, After: cloneContainer(current)})
	return cloneContainer(current), nil
}

// DeleteContainer removes a container.
func (tx *transaction) DeleteContainer(id string) error {
	current, ok := tx.state.containers[id]
	if !ok {
		return fmt.Errorf("container %q not found", id)
	}
	delete(tx.state.containers, id)
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionDelete, Before: cloneContainer(current)})
	return nil
}

// CreateQualityCheck stores a quality check result. Checks are immutable
// once recorded.
func (tx *transaction) CreateQualityCheck(q QualityCheck) (QualityCheck, error) {
	if q.ID == "" {
		q.ID = tx.store.newID()
	}
	if _, exists := tx.state.checks[q.ID]; exists {
		return QualityCheck{}, fmt.Errorf("quality check %q already exists", q.ID)
	}
	if _, ok := tx.state.orders[q.OrderID]; !ok {
		return QualityCheck{}, fmt.Errorf("order %q not found", q.OrderID)
	}
	q.Version = 1
	q.CreatedAt = tx.now
	q.UpdatedAt = tx.now
	tx.state.checks[q.ID] = cloneQualityCheck(q)
	tx.recordChange(Change{Entity: domain.EntityQualityCheck, Action: domain.ActionCreate, After: cloneQualityCheck(q)})
	return cloneQualityCheck(q), nil
}

// CreateSPCSeries stores a new SPC series. Parameter names are unique.
func (tx *transaction) CreateSPCSeries(s SPCSeries) (SPCSeries, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.spc[s.ID]; exists {
		return SPCSeries{}, fmt.Errorf("spc series %q already exists", s.ID)
	}
	for _, existing := range tx.state.spc {
		if existing.Parameter == s.Parameter {
			return SPCSeries{}, fmt.Errorf("spc series for parameter %q already exists", s.Parameter)
		}
	}
	s.Version = 1
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.spc[s.ID] = cloneSPCSeries(s)
	tx.recordChange(Change{Entity: domain.EntitySPCSeries, Action: domain.ActionCreate, After: cloneSPCSeries(s)})
	return cloneSPCSeries(s), nil
}

// UpdateSPCSeries mutates an existing SPC series.
func (tx *transaction) UpdateSPCSeries(id string, mutator func(*SPCSeries) error) (SPCSeries, error) {
	current, ok := tx.state.spc[id]
	if !ok {
		return SPCSeries{}, fmt.Errorf("spc series %q not found", id)
	}
	before := cloneSPCSeries(current)
	if err := mutator(&current); err != nil {
		return SPCSeries{}, err
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.spc[id] = cloneSPCSeries(current)
	tx.recordChange(Change{Entity: domain.EntitySPCSeries, Action: domain.ActionUpdate, Before: before, After: cloneSPCSeries(current)})
	return cloneSPCSeries(current), nil
}

// AppendOrderStateChange records an order transition audit entry.
func (tx *transaction) AppendOrderStateChange(c OrderStateChange) (OrderStateChange, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.orderAudit[c.ID]; exists {
		return OrderStateChange{}, fmt.Errorf("state change %q already exists", c.ID)
	}
	if _, ok := tx.state.orders[c.OrderID]; !ok {
		return OrderStateChange{}, fmt.Errorf("order %q not found", c.OrderID)
	}
	if c.OccurredAt.IsZero() {
		c.OccurredAt = tx.now
	}
	tx.state.orderAudit[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityOrderStateChange, Action: domain.ActionCreate, After: c})
	return c, nil
}

func sortedOrderStateChanges(state *memoryState) []OrderStateChange {
	out := make([]OrderStateChange, 0, len(state.orderAudit))
	for _, c := range state.orderAudit {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

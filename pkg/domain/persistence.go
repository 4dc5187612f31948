package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error
	CreateRouting(Routing) (Routing, error)
	UpdateRouting(id string, mutator func(*Routing) error) (Routing, error)
	DeleteRouting(id string) error
	CreateWorkstation(Workstation) (Workstation, error)
	UpdateWorkstation(id string, mutator func(*Workstation) error) (Workstation, error)
	DeleteWorkstation(id string) error
	CreateScheduleItem(ScheduleItem) (ScheduleItem, error)
	UpdateScheduleItem(id string, mutator func(*ScheduleItem) error) (ScheduleItem, error)
	DeleteScheduleItem(id string) error
	CreateNCR(NCR) (NCR, error)
	UpdateNCR(id string, mutator func(*NCR) error) (NCR, error)
	DeleteNCR(id string) error
	CreateKanbanCard(KanbanCard) (KanbanCard, error)
	UpdateKanbanCard(id string, mutator func(*KanbanCard) error) (KanbanCard, error)
	DeleteKanbanCard(id string) error
	CreateMaintenanceLog(MaintenanceLog) (MaintenanceLog, error)
	UpdateMaintenanceLog(id string, mutator func(*MaintenanceLog) error) (MaintenanceLog, error)
	DeleteMaintenanceLog(id string) error
	CreateMaterialStock(MaterialStock) (MaterialStock, error)
	UpdateMaterialStock(id string, mutator func(*MaterialStock) error) (MaterialStock, error)
	DeleteMaterialStock(id string) error
	CreateContainer(Container) (Container, error)
	UpdateContainer(id string, mutator func(*Container) error) (Container, error)
	DeleteContainer(id string) error
	CreateQualityCheck(QualityCheck) (QualityCheck, error)
	CreateSPCSeries(SPCSeries) (SPCSeries, error)
	UpdateSPCSeries(id string, mutator func(*SPCSeries) error) (SPCSeries, error)
	AppendOrderStateChange(OrderStateChange) (OrderStateChange, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// in-transaction reads.
type TransactionView interface {
	RuleView
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetOrder(id string) (Order, bool)
	ListOrders() []Order
	GetRouting(id string) (Routing, bool)
	ListRoutings() []Routing
	GetWorkstation(id string) (Workstation, bool)
	ListWorkstations() []Workstation
	GetScheduleItem(id string) (ScheduleItem, bool)
	ListScheduleItems() []ScheduleItem
	GetNCR(id string) (NCR, bool)
	ListNCRs() []NCR
	GetKanbanCard(id string) (KanbanCard, bool)
	ListKanbanCards() []KanbanCard
	GetMaintenanceLog(id string) (MaintenanceLog, bool)
	ListMaintenanceLogs() []MaintenanceLog
	GetMaterialStock(id string) (MaterialStock, bool)
	ListMaterialStocks() []MaterialStock
	GetContainer(id string) (Container, bool)
	ListContainers() []Container
	ListQualityChecks() []QualityCheck
	GetSPCSeries(id string) (SPCSeries, bool)
	ListSPCSeries() []SPCSeries
	ListOrderStateChanges() []OrderStateChange
}

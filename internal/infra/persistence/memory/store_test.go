package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"mescore/pkg/domain"
)

func seedOrderAndWorkstation(t *testing.T, store *Store) (Order, Workstation) {
	t.Helper()
	var order Order
	var ws Workstation
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		order, err = tx.CreateOrder(Order{Number: "ORD-1", ProductID: "prod-1", State: domain.OrderPending})
		if err != nil {
			return err
		}
		ws, err = tx.CreateWorkstation(Workstation{Number: "WS-1", Class: "mill", Active: true})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return order, ws
}

func TestCreateAssignsIDVersionAndTimestamps(t *testing.T) {
	store := NewStore(nil)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return now })

	order, _ := seedOrderAndWorkstation(t, store)
	if order.ID == "" {
		t.Fatalf("expected generated id")
	}
	if order.Version != 1 {
		t.Fatalf("new order version: got %d want 1", order.Version)
	}
	if !order.CreatedAt.Equal(now) || !order.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not stamped: %v / %v", order.CreatedAt, order.UpdatedAt)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	store := NewStore(nil)
	order, _ := seedOrderAndWorkstation(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateOrder(order.ID, func(o *Order) error {
			o.State = domain.OrderAccepted
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetOrder(order.ID)
	if !ok {
		t.Fatalf("order missing after update")
	}
	if got.Version != 2 {
		t.Fatalf("version after update: got %d want 2", got.Version)
	}
	if got.State != domain.OrderAccepted {
		t.Fatalf("state not applied: %s", got.State)
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := NewStore(nil)
	order, _ := seedOrderAndWorkstation(t, store)

	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.UpdateOrder(order.ID, func(o *Order) error {
			o.State = domain.OrderAccepted
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := store.GetOrder(order.ID)
	if got.State != domain.OrderPending {
		t.Fatalf("state leaked from aborted transaction: %s", got.State)
	}
	if got.Version != 1 {
		t.Fatalf("version leaked from aborted transaction: %d", got.Version)
	}
}

type blockEverything struct{}

func (blockEverything) Name() string { return "block-everything" }

func (blockEverything) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block-everything", Severity: domain.SeverityBlock, Message: "no writes"}}}, nil
}

func TestBlockingRuleAbortsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockEverything{})
	store := NewStore(engine)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateOrder(Order{Number: "ORD-9", State: domain.OrderPending})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if len(store.ListOrders()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestScheduleItemRejectsEmptyInterval(t *testing.T) {
	store := NewStore(nil)
	order, ws := seedOrderAndWorkstation(t, store)
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateScheduleItem(ScheduleItem{
			OrderID:       order.ID,
			WorkstationID: ws.ID,
			PlannedStart:  start,
			PlannedEnd:    start,
		})
		return err
	})
	if err == nil {
		t.Fatalf("zero-length interval accepted")
	}
}

func TestDeleteOrderCascadesScheduleItems(t *testing.T) {
	store := NewStore(nil)
	order, ws := seedOrderAndWorkstation(t, store)
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateScheduleItem(ScheduleItem{
			OrderID:       order.ID,
			WorkstationID: ws.ID,
			PlannedStart:  start,
			PlannedEnd:    start.Add(time.Hour),
		})
		return err
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteOrder(order.ID)
	})
	if err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if items := store.ListScheduleItems(); len(items) != 0 {
		t.Fatalf("schedule items survived order delete: %d", len(items))
	}
}

func TestDeleteOrderRefusedWhileAuditReferencesIt(t *testing.T) {
	store := NewStore(nil)
	order, _ := seedOrderAndWorkstation(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.AppendOrderStateChange(OrderStateChange{
			OrderID:     order.ID,
			SourceState: domain.OrderPending,
			TargetState: domain.OrderAccepted,
			Actor:       "tester",
		})
		return err
	})
	if err != nil {
		t.Fatalf("append audit: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteOrder(order.ID)
	})
	if err == nil {
		t.Fatalf("delete should be refused while audit records reference the order")
	}
}

func TestSPCSeriesParameterUnique(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateSPCSeries(SPCSeries{Parameter: "diameter", WindowSize: 50}); err != nil {
			return err
		}
		_, err := tx.CreateSPCSeries(SPCSeries{Parameter: "diameter", WindowSize: 50})
		return err
	})
	if err == nil {
		t.Fatalf("duplicate parameter accepted")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	order, ws := seedOrderAndWorkstation(t, store)
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateScheduleItem(ScheduleItem{
			OrderID:       order.ID,
			WorkstationID: ws.ID,
			PlannedStart:  start,
			PlannedEnd:    start.Add(time.Hour),
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}

	snapshot := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)

	if len(restored.ListOrders()) != 1 || len(restored.ListWorkstations()) != 1 || len(restored.ListScheduleItems()) != 1 {
		t.Fatalf("round trip lost records")
	}
	got, ok := restored.GetOrder(order.ID)
	if !ok || got.Number != "ORD-1" {
		t.Fatalf("order not restored: %+v", got)
	}
}

func TestImportDropsDanglingReferences(t *testing.T) {
	snapshot := Snapshot{
		Items: map[string]ScheduleItem{
			"i1": {OrderID: "missing", WorkstationID: "missing"},
		},
		Maintenance: map[string]MaintenanceLog{
			"m1": {WorkstationID: "missing"},
		},
	}
	store := NewStore(nil)
	store.ImportState(snapshot)
	if len(store.ListScheduleItems()) != 0 || len(store.ListMaintenanceLogs()) != 0 {
		t.Fatalf("dangling records survived import")
	}
}

func TestViewSeesIsolatedClone(t *testing.T) {
	store := NewStore(nil)
	order, _ := seedOrderAndWorkstation(t, store)

	err := store.View(context.Background(), func(view TransactionView) error {
		got, ok := view.FindOrder(order.ID)
		if !ok {
			t.Fatalf("order missing in view")
		}
		got.State = domain.OrderCompleted // mutate the copy only
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	persisted, _ := store.GetOrder(order.ID)
	if persisted.State != domain.OrderPending {
		t.Fatalf("view mutation leaked into store")
	}
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mescore/pkg/domain"
)

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var order domain.Order
	var ws domain.Workstation
	start := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		order, err = tx.CreateOrder(domain.Order{Number: "ORD-77", State: domain.OrderPending})
		if err != nil {
			return err
		}
		ws, err = tx.CreateWorkstation(domain.Workstation{Number: "WS-1", Class: "lathe", Active: true})
		if err != nil {
			return err
		}
		_, err = tx.CreateScheduleItem(domain.ScheduleItem{
			OrderID:       order.ID,
			WorkstationID: ws.ID,
			PlannedStart:  start,
			PlannedEnd:    start.Add(time.Hour),
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.GetOrder(order.ID)
	if !ok || got.Number != "ORD-77" {
		t.Fatalf("order not restored: %+v", got)
	}
	if len(reopened.ListScheduleItems()) != 1 {
		t.Fatalf("schedule item not restored")
	}
	if len(reopened.ListWorkstations()) != 1 {
		t.Fatalf("workstation not restored")
	}
}

func TestFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateOrder(domain.Order{Number: "ORD-1", State: domain.OrderPending}); err != nil {
			return err
		}
		// Force failure after the write.
		_, err := tx.CreateScheduleItem(domain.ScheduleItem{OrderID: "missing", WorkstationID: "missing"})
		return err
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if len(store.ListOrders()) != 0 {
		t.Fatalf("aborted transaction persisted")
	}
}

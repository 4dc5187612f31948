package core

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"mescore/internal/infra/persistence/memory"
	"mescore/pkg/domain"
)

var testActor = domain.Actor{ID: "u-1", Name: "tester", Roles: []string{"supervisor"}}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(DefaultRulesEngine())
	now := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return now })
	svc := NewService(store, WithNowFunc(func() time.Time { return now }))
	return svc, store
}

func mustCreateOrder(t *testing.T, svc *Service, number string) domain.Order {
	t.Helper()
	order, _, err := svc.CreateOrder(context.Background(), domain.Order{Number: number, ProductID: "prod-1"}, testActor)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestOrderTransitionScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := mustCreateOrder(t, svc, "ORD-1")

	_, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderInProgress, testActor)
	var ite domain.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("pending -> in_progress should be illegal, got %v", err)
	}
	if ite.From != "pending" || ite.To != "in_progress" {
		t.Fatalf("error edge mismatch: %+v", ite)
	}

	if _, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderAccepted, testActor); err != nil {
		t.Fatalf("pending -> accepted: %v", err)
	}
	updated, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderInProgress, testActor)
	if err != nil {
		t.Fatalf("accepted -> in_progress: %v", err)
	}
	if updated.State != domain.OrderInProgress {
		t.Fatalf("state: %s", updated.State)
	}
	if updated.StartDate == nil {
		t.Fatalf("start date not stamped on in_progress")
	}
}

func TestIllegalTransitionLeavesStateUntouched(t *testing.T) {
	svc, store := newTestService(t)
	order := mustCreateOrder(t, svc, "ORD-1")
	before := store.ExportState()

	_, _, err := svc.TransitionOrder(context.Background(), order.ID, domain.OrderCompleted, testActor)
	var ite domain.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
	after := store.ExportState()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("state mutated by rejected transition")
	}
}

func TestTransitionOrderAppendsAudit(t *testing.T) {
	svc, store := newTestService(t)
	order := mustCreateOrder(t, svc, "ORD-1")

	if _, _, err := svc.TransitionOrder(context.Background(), order.ID, domain.OrderAccepted, testActor); err != nil {
		t.Fatalf("transition: %v", err)
	}
	changes := store.ListOrderStateChanges()
	if len(changes) != 1 {
		t.Fatalf("audit records: got %d want 1", len(changes))
	}
	rec := changes[0]
	if rec.OrderID != order.ID || rec.SourceState != domain.OrderPending || rec.TargetState != domain.OrderAccepted {
		t.Fatalf("audit record mismatch: %+v", rec)
	}
	if rec.Actor != "tester" {
		t.Fatalf("actor: %q", rec.Actor)
	}
}

func TestOrderCompletionBlockedByOpenScheduleItems(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	order := mustCreateOrder(t, svc, "ORD-1")
	ws, _, err := svc.CreateWorkstation(ctx, domain.Workstation{Number: "WS-1", Class: "mill", Active: true}, testActor)
	if err != nil {
		t.Fatalf("create workstation: %v", err)
	}

	start := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	var item domain.ScheduleItem
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		item, err = tx.CreateScheduleItem(domain.ScheduleItem{
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

	if _, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderAccepted, testActor); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderInProgress, testActor); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _, err = svc.TransitionOrder(ctx, order.ID, domain.OrderCompleted, testActor)
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("completion with open items should conflict, got %v", err)
	}

	if _, _, err := svc.CompleteScheduleItem(ctx, item.ID, testActor); err != nil {
		t.Fatalf("complete item: %v", err)
	}
	completed, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderCompleted, testActor)
	if err != nil {
		t.Fatalf("complete order: %v", err)
	}
	if completed.FinishDate == nil {
		t.Fatalf("finish date not stamped")
	}
}

func TestSetMasterRoutingAtomicity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.CreateRouting(ctx, domain.Routing{Number: "R-A", ProductID: "prod-1"}, testActor)
	if err != nil {
		t.Fatalf("create routing a: %v", err)
	}
	b, _, err := svc.CreateRouting(ctx, domain.Routing{Number: "R-B", ProductID: "prod-1"}, testActor)
	if err != nil {
		t.Fatalf("create routing b: %v", err)
	}

	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(routingID string) {
			defer wg.Done()
			_, _, _ = svc.SetMasterRouting(ctx, routingID, testActor)
		}(id)
	}
	wg.Wait()

	masters := 0
	for _, routing := range store.ListRoutings() {
		if routing.Master {
			masters++
		}
	}
	if masters != 1 {
		t.Fatalf("master count after concurrent set_master: got %d want 1", masters)
	}
}

func TestRoutingDeclineFromAnyNonDeclinedState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	routing, _, err := svc.CreateRouting(ctx, domain.Routing{Number: "R-1", ProductID: "prod-1"}, testActor)
	if err != nil {
		t.Fatalf("create routing: %v", err)
	}

	if _, _, err := svc.TransitionRouting(ctx, routing.ID, domain.RoutingAccepted, testActor); err != nil {
		t.Fatalf("draft -> accepted: %v", err)
	}
	declined, _, err := svc.TransitionRouting(ctx, routing.ID, domain.RoutingDeclined, testActor)
	if err != nil {
		t.Fatalf("accepted -> declined: %v", err)
	}
	if declined.State != domain.RoutingDeclined {
		t.Fatalf("state: %s", declined.State)
	}

	_, _, err = svc.TransitionRouting(ctx, routing.ID, domain.RoutingDraft, testActor)
	var ite domain.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("declined is terminal, got %v", err)
	}
}

func TestNCRCloseRequiresDisposition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ncr, _, err := svc.CreateNCR(ctx, domain.NCR{Description: "surface scratches"}, testActor)
	if err != nil {
		t.Fatalf("create ncr: %v", err)
	}

	_, _, err = svc.TransitionNCR(ctx, ncr.ID, domain.NCRClosed, testActor)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "disposition" {
		t.Fatalf("close without disposition should fail validation, got %v", err)
	}

	if _, _, err := svc.SetNCRDisposition(ctx, ncr.ID, domain.DispositionRework, testActor); err != nil {
		t.Fatalf("set disposition: %v", err)
	}
	closed, _, err := svc.TransitionNCR(ctx, ncr.ID, domain.NCRClosed, testActor)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != domain.NCRClosed {
		t.Fatalf("status: %s", closed.Status)
	}

	_, _, err = svc.TransitionNCR(ctx, ncr.ID, domain.NCRReview, testActor)
	var ite domain.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("closed must be terminal, got %v", err)
	}
	_, _, err = svc.SetNCRDisposition(ctx, ncr.ID, domain.DispositionScrap, testActor)
	if !errors.As(err, &ve) {
		t.Fatalf("disposition must be immutable after close, got %v", err)
	}
}

func TestNCRNumbering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.CreateNCR(ctx, domain.NCR{Description: "first"}, testActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, _, err := svc.CreateNCR(ctx, domain.NCR{Description: "second"}, testActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Number != "NCR-20260615-0001" {
		t.Fatalf("first number: %s", first.Number)
	}
	if second.Number != "NCR-20260615-0002" {
		t.Fatalf("second number: %s", second.Number)
	}
}

func TestFailedMandatoryQualityCheckOpensNCR(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	order := mustCreateOrder(t, svc, "ORD-1")

	check, _, err := svc.RecordQualityCheck(ctx, domain.QualityCheck{
		OrderID:   order.ID,
		Parameter: "diameter",
		CheckType: domain.QualityCheckVariable,
		Passed:    false,
		Mandatory: true,
	}, testActor)
	if err != nil {
		t.Fatalf("record check: %v", err)
	}
	if check.NCRID == nil {
		t.Fatalf("failed mandatory check must link an ncr")
	}
	ncr, ok := store.GetNCR(*check.NCRID)
	if !ok {
		t.Fatalf("linked ncr missing")
	}
	if ncr.Status != domain.NCRQuarantine {
		t.Fatalf("ncr status: %s", ncr.Status)
	}
	if ncr.OrderID == nil || *ncr.OrderID != order.ID {
		t.Fatalf("ncr order link: %+v", ncr.OrderID)
	}

	passed, _, err := svc.RecordQualityCheck(ctx, domain.QualityCheck{
		OrderID:   order.ID,
		Parameter: "length",
		CheckType: domain.QualityCheckPassFail,
		Passed:    true,
		Mandatory: true,
	}, testActor)
	if err != nil {
		t.Fatalf("record passing check: %v", err)
	}
	if passed.NCRID != nil {
		t.Fatalf("passing check must not open an ncr")
	}
	if passed.Inspector != "tester" {
		t.Fatalf("inspector defaulted to %q", passed.Inspector)
	}
}

func TestKanbanCycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	card, _, err := svc.CreateKanbanCard(ctx, domain.KanbanCard{MaterialID: "mat-1", Location: "line-1"}, testActor)
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	if card.Status != domain.KanbanFull {
		t.Fatalf("initial status: %s", card.Status)
	}

	empty, _, err := svc.MarkKanbanEmpty(ctx, card.ID, false, testActor)
	if err != nil {
		t.Fatalf("mark empty: %v", err)
	}
	if empty.Status != domain.KanbanEmpty {
		t.Fatalf("status after mark_empty: %s", empty.Status)
	}
	if _, _, err := svc.TriggerKanbanReplenishment(ctx, card.ID, testActor); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	full, _, err := svc.CompleteKanbanReplenishment(ctx, card.ID, testActor)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if full.Status != domain.KanbanFull || full.LastReplenished == nil {
		t.Fatalf("replenishment not recorded: %+v", full)
	}

	auto, _, err := svc.MarkKanbanEmpty(ctx, card.ID, true, testActor)
	if err != nil {
		t.Fatalf("mark empty with auto trigger: %v", err)
	}
	if auto.Status != domain.KanbanReplenishing {
		t.Fatalf("auto trigger status: %s", auto.Status)
	}

	if _, _, err := svc.DeactivateKanbanCard(ctx, card.ID, testActor); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, _, err = svc.CompleteKanbanReplenishment(ctx, card.ID, testActor)
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("deactivated card must reject transitions, got %v", err)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ws, _, err := svc.CreateWorkstation(ctx, domain.Workstation{Number: "WS-1", Class: "mill", Active: true}, testActor)
	if err != nil {
		t.Fatalf("create workstation: %v", err)
	}

	log, _, err := svc.StartMaintenance(ctx, ws.ID, domain.MaintenanceBreakdown, "spindle failure", testActor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !log.Open() {
		t.Fatalf("new log must be open")
	}
	if log.Technician != "tester" {
		t.Fatalf("technician: %q", log.Technician)
	}

	_, _, err = svc.CompleteMaintenance(ctx, log.ID, log.StartTime.Add(-time.Hour), testActor)
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("end before start should fail validation, got %v", err)
	}

	closed, _, err := svc.CompleteMaintenance(ctx, log.ID, log.StartTime.Add(2*time.Hour), testActor)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if closed.Open() || closed.DurationHours() != 2 {
		t.Fatalf("closed log: %+v", closed)
	}

	_, _, err = svc.CompleteMaintenance(ctx, log.ID, log.StartTime.Add(3*time.Hour), testActor)
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("re-closing must conflict, got %v", err)
	}

	_, _, err = svc.StartMaintenance(ctx, ws.ID, "overhaul", "invalid", testActor)
	if !errors.As(err, &ve) {
		t.Fatalf("unknown type should fail validation, got %v", err)
	}
}

func TestDeleteRoutingGuardedByOrderReferences(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	routing, _, err := svc.CreateRouting(ctx, domain.Routing{Number: "R-1", ProductID: "prod-1"}, testActor)
	if err != nil {
		t.Fatalf("create routing: %v", err)
	}
	order := mustCreateOrder(t, svc, "ORD-1")
	if _, _, err := svc.AssignRouting(ctx, order.ID, routing.ID, testActor); err != nil {
		t.Fatalf("assign routing: %v", err)
	}

	_, err = svc.DeleteRouting(ctx, routing.ID, testActor)
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("delete while referenced should be blocked, got %v", err)
	}

	if _, _, err := svc.TransitionOrder(ctx, order.ID, domain.OrderDeclined, testActor); err != nil {
		t.Fatalf("decline order: %v", err)
	}
	if _, err := svc.DeleteRouting(ctx, routing.ID, testActor); err != nil {
		t.Fatalf("delete after order terminal: %v", err)
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestVariableQualityCheckEvaluatedAgainstTolerance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	order := mustCreateOrder(t, svc, "ORD-1")

	inBand, _, err := svc.RecordQualityCheck(ctx, domain.QualityCheck{
		OrderID:       order.ID,
		Parameter:     "diameter",
		CheckType:     domain.QualityCheckVariable,
		MeasuredValue: floatPtr(10.3),
		Nominal:       floatPtr(10),
		Tolerance:     floatPtr(0.5),
	}, testActor)
	if err != nil {
		t.Fatalf("record in-band: %v", err)
	}
	if !inBand.Passed || inBand.ResultValue != "10.3" {
		t.Fatalf("in-band check: %+v", inBand)
	}

	outOfBand, _, err := svc.RecordQualityCheck(ctx, domain.QualityCheck{
		OrderID:       order.ID,
		Parameter:     "diameter",
		CheckType:     domain.QualityCheckVariable,
		MeasuredValue: floatPtr(10.8),
		Nominal:       floatPtr(10),
		Tolerance:     floatPtr(0.5),
		Mandatory:     true,
	}, testActor)
	if err != nil {
		t.Fatalf("record out-of-band: %v", err)
	}
	if outOfBand.Passed || outOfBand.NCRID == nil {
		t.Fatalf("out-of-band mandatory check must fail and open an NCR: %+v", outOfBand)
	}

	_, _, err = svc.RecordQualityCheck(ctx, domain.QualityCheck{
		OrderID:       order.ID,
		Parameter:     "diameter",
		CheckType:     domain.QualityCheckVariable,
		MeasuredValue: floatPtr(10.1),
	}, testActor)
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("variable check without band should fail validation, got %v", err)
	}
}

func TestOrderHistory(t *testing.T) {
	// An advancing clock so audit ordering by timestamp is observable.
	store := memory.NewStore(DefaultRulesEngine())
	current := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, WithNowFunc(func() time.Time {
		current = current.Add(time.Second)
		return current
	}))
	ctx := context.Background()
	order := mustCreateOrder(t, svc, "ORD-1")
	other := mustCreateOrder(t, svc, "ORD-2")

	for _, target := range []domain.OrderState{domain.OrderAccepted, domain.OrderInProgress} {
		if _, _, err := svc.TransitionOrder(ctx, order.ID, target, testActor); err != nil {
			t.Fatalf("transition %s: %v", target, err)
		}
	}
	if _, _, err := svc.TransitionOrder(ctx, other.ID, domain.OrderAccepted, testActor); err != nil {
		t.Fatalf("transition other: %v", err)
	}

	history, err := svc.OrderHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length: %d", len(history))
	}
	if history[0].TargetState != domain.OrderAccepted || history[1].TargetState != domain.OrderInProgress {
		t.Fatalf("history order: %+v", history)
	}

	_, err = svc.OrderHistory(ctx, "missing")
	var nfe domain.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

package domain

import "testing"

func TestOrderTransitionTable(t *testing.T) {
	cases := []struct {
		from, to OrderState
		ok       bool
	}{
		{OrderPending, OrderAccepted, true},
		{OrderPending, OrderDeclined, true},
		{OrderPending, OrderInProgress, false},
		{OrderAccepted, OrderInProgress, true},
		{OrderAccepted, OrderDeclined, true},
		{OrderInProgress, OrderCompleted, true},
		{OrderInProgress, OrderInterrupted, true},
		{OrderInterrupted, OrderInProgress, true},
		{OrderInterrupted, OrderAbandoned, true},
		{OrderCompleted, OrderInProgress, false},
		{OrderDeclined, OrderPending, false},
		{OrderAbandoned, OrderInProgress, false},
	}
	for _, c := range cases {
		if got := CanTransitionOrder(c.from, c.to); got != c.ok {
			t.Fatalf("order %s -> %s: got %v want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestRoutingTransitionTable(t *testing.T) {
	cases := []struct {
		from, to RoutingState
		ok       bool
	}{
		{RoutingDraft, RoutingAccepted, true},
		{RoutingDraft, RoutingChecked, false},
		{RoutingAccepted, RoutingChecked, true},
		{RoutingChecked, RoutingOutdated, true},
		{RoutingOutdated, RoutingDraft, false},
		{RoutingDeclined, RoutingDraft, false},
	}
	for _, c := range cases {
		if got := CanTransitionRouting(c.from, c.to); got != c.ok {
			t.Fatalf("routing %s -> %s: got %v want %v", c.from, c.to, got, c.ok)
		}
	}
	// Every non-declined state may decline.
	for _, from := range []RoutingState{RoutingDraft, RoutingAccepted, RoutingChecked, RoutingOutdated} {
		if !CanTransitionRouting(from, RoutingDeclined) {
			t.Fatalf("routing %s -> declined should be legal", from)
		}
	}
	if CanTransitionRouting(RoutingDeclined, RoutingDeclined) {
		t.Fatalf("declined routing must be terminal")
	}
}

func TestNCRClosedIsTerminal(t *testing.T) {
	if !CanTransitionNCR(NCRQuarantine, NCRReview) || !CanTransitionNCR(NCRReview, NCRQuarantine) {
		t.Fatalf("quarantine <-> review must be legal")
	}
	if !CanTransitionNCR(NCRQuarantine, NCRClosed) || !CanTransitionNCR(NCRReview, NCRClosed) {
		t.Fatalf("both open statuses must be able to close")
	}
	for _, to := range []NCRStatus{NCRQuarantine, NCRReview, NCRClosed} {
		if CanTransitionNCR(NCRClosed, to) {
			t.Fatalf("closed -> %s must be illegal", to)
		}
	}
}

func TestKanbanCycle(t *testing.T) {
	if !CanTransitionKanban(KanbanFull, KanbanReplenishing) {
		t.Fatalf("full -> replenishing must be legal")
	}
	if !CanTransitionKanban(KanbanFull, KanbanEmpty) || !CanTransitionKanban(KanbanEmpty, KanbanReplenishing) {
		t.Fatalf("full -> empty -> replenishing must be legal")
	}
	if !CanTransitionKanban(KanbanReplenishing, KanbanFull) {
		t.Fatalf("replenishing -> full must be legal")
	}
	if CanTransitionKanban(KanbanEmpty, KanbanFull) || CanTransitionKanban(KanbanReplenishing, KanbanEmpty) {
		t.Fatalf("shortcut edges must be illegal")
	}
}

func TestAllowedTargets(t *testing.T) {
	got := AllowedOrderTargets(OrderPending)
	if len(got) != 2 {
		t.Fatalf("pending targets: got %v", got)
	}
	if targets := AllowedNCRTargets(NCRClosed); len(targets) != 0 {
		t.Fatalf("closed NCR targets: got %v", targets)
	}
}

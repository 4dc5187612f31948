package domain

// Transition tables for the lifecycle-managed entity kinds. Edges absent
// from a table are illegal. Keeping the tables here, next to the state
// enums, lets the lifecycle engine and its tests share one source of truth.

var orderTransitions = map[OrderState][]OrderState{
	OrderPending:     {OrderAccepted, OrderDeclined},
	OrderAccepted:    {OrderInProgress, OrderDeclined},
	OrderInProgress:  {OrderCompleted, OrderInterrupted},
	OrderInterrupted: {OrderInProgress, OrderAbandoned},
	OrderCompleted:   nil,
	OrderDeclined:    nil,
	OrderAbandoned:   nil,
}

var routingTransitions = map[RoutingState][]RoutingState{
	RoutingDraft:    {RoutingAccepted, RoutingDeclined},
	RoutingAccepted: {RoutingChecked, RoutingDeclined},
	RoutingChecked:  {RoutingOutdated, RoutingDeclined},
	RoutingOutdated: {RoutingDeclined},
	RoutingDeclined: nil,
}

var ncrTransitions = map[NCRStatus][]NCRStatus{
	NCRQuarantine: {NCRReview, NCRClosed},
	NCRReview:     {NCRQuarantine, NCRClosed},
	NCRClosed:     nil,
}

var kanbanTransitions = map[KanbanStatus][]KanbanStatus{
	KanbanFull:         {KanbanReplenishing, KanbanEmpty},
	KanbanEmpty:        {KanbanReplenishing},
	KanbanReplenishing: {KanbanFull},
}

// ValidOrderState reports whether s is a known order state.
func ValidOrderState(s OrderState) bool {
	_, ok := orderTransitions[s]
	return ok
}

// ValidRoutingState reports whether s is a known routing state.
func ValidRoutingState(s RoutingState) bool {
	_, ok := routingTransitions[s]
	return ok
}

// ValidNCRStatus reports whether s is a known NCR status.
func ValidNCRStatus(s NCRStatus) bool {
	_, ok := ncrTransitions[s]
	return ok
}

// ValidKanbanStatus reports whether s is a known kanban status.
func ValidKanbanStatus(s KanbanStatus) bool {
	_, ok := kanbanTransitions[s]
	return ok
}

// CanTransitionOrder reports whether from→to is a legal order edge.
func CanTransitionOrder(from, to OrderState) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransitionRouting reports whether from→to is a legal routing edge.
func CanTransitionRouting(from, to RoutingState) bool {
	for _, t := range routingTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransitionNCR reports whether from→to is a legal NCR edge.
func CanTransitionNCR(from, to NCRStatus) bool {
	for _, t := range ncrTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransitionKanban reports whether from→to is a legal kanban edge.
func CanTransitionKanban(from, to KanbanStatus) bool {
	for _, t := range kanbanTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AllowedOrderTargets returns the legal targets from the given state.
func AllowedOrderTargets(from OrderState) []string {
	out := make([]string, 0, len(orderTransitions[from]))
	for _, t := range orderTransitions[from] {
		out = append(out, string(t))
	}
	return out
}

// AllowedRoutingTargets returns the legal targets from the given state.
func AllowedRoutingTargets(from RoutingState) []string {
	out := make([]string, 0, len(routingTransitions[from]))
	for _, t := range routingTransitions[from] {
		out = append(out, string(t))
	}
	return out
}

// AllowedNCRTargets returns the legal targets from the given status.
func AllowedNCRTargets(from NCRStatus) []string {
	out := make([]string, 0, len(ncrTransitions[from]))
	for _, t := range ncrTransitions[from] {
		out = append(out, string(t))
	}
	return out
}

// AllowedKanbanTargets returns the legal targets from the given status.
func AllowedKanbanTargets(from KanbanStatus) []string {
	out := make([]string, 0, len(kanbanTransitions[from]))
	for _, t := range kanbanTransitions[from] {
		out = append(out, string(t))
	}
	return out
}

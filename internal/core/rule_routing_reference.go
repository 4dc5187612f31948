package core

import (
	"context"
	"fmt"

	"mescore/pkg/domain"
)

// NewRoutingReferenceRule returns the in-transaction rule rejecting routing
// deletion while any non-terminal order still references the routing.
func NewRoutingReferenceRule() domain.Rule {
	return routingReferenceRule{}
}

type routingReferenceRule struct{}

func (routingReferenceRule) Name() string { return "routing_referenced" }

func orderTerminal(state domain.OrderState) bool {
	switch state {
	case domain.OrderCompleted, domain.OrderDeclined, domain.OrderAbandoned:
		return true
	}
	return false
}

func (routingReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRouting || change.Action != domain.ActionDelete {
			continue
		}
		deleted, ok := change.Before.(domain.Routing)
		if !ok {
			continue
		}
		for _, order := range view.ListOrders() {
			if order.RoutingID == nil || *order.RoutingID != deleted.ID {
				continue
			}
			if orderTerminal(order.State) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "routing_referenced",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("routing %s is referenced by non-terminal order %s (%s)", deleted.ID, order.ID, order.State),
				Entity:   domain.EntityRouting,
				EntityID: deleted.ID,
			})
		}
	}
	return res, nil
}

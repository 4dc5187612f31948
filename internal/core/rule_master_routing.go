package core

import (
	"context"
	"fmt"

	"mescore/pkg/domain"
)

// NewMasterRoutingRule returns the in-transaction rule enforcing that at most
// one routing per product carries the master flag.
func NewMasterRoutingRule() domain.Rule {
	return masterRoutingRule{}
}

type masterRoutingRule struct{}

func (masterRoutingRule) Name() string { return "master_routing_unique" }

func (masterRoutingRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	masters := make(map[string][]string)
	for _, routing := range view.ListRoutings() {
		if routing.Master {
			masters[routing.ProductID] = append(masters[routing.ProductID], routing.ID)
		}
	}

	res := domain.Result{}
	for product, ids := range masters {
		if len(ids) > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "master_routing_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("product %s has %d master routings, expected at most one", product, len(ids)),
				Entity:   domain.EntityRouting,
				EntityID: ids[0],
			})
		}
	}
	return res, nil
}

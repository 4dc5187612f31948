package core

import "mescore/pkg/domain"

// DefaultRulesEngine returns the rules engine with the standard invariants
// registered: unique master routing per product, capacity-aware schedule
// overlap, and routing deletion guarded by non-terminal order references.
func DefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewMasterRoutingRule())
	engine.Register(NewScheduleOverlapRule())
	engine.Register(NewRoutingReferenceRule())
	return engine
}

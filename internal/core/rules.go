package core

import "pharmxchain/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
// Every transaction commits only after these checks pass against the
// resulting state, so a bug in an operation cannot silently corrupt the
// ledger.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewConservationRule())
	engine.Register(NewNonNegativityRule())
	engine.Register(NewIndexConsistencyRule())
	return engine
}

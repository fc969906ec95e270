package core_test

import (
	"context"
	"testing"

	"pharmxchain/internal/core"
	"pharmxchain/pkg/domain"
)

// fakeView is a hand-built snapshot for exercising rules against states the
// store itself would never commit.
type fakeView struct {
	medicines map[string]domain.Medicine
	batches   map[string]domain.Batch
	byMed     map[string][]string
	balances  map[string]map[string]int64
	holders   map[string][]domain.HolderRef
	holderMed map[string][]string
	dispensed map[string]int64
}

func (v *fakeView) FindMedicine(id string) (domain.Medicine, bool) {
	m, ok := v.medicines[id]
	return m, ok
}

func (v *fakeView) ListMedicines() []domain.Medicine {
	out := make([]domain.Medicine, 0, len(v.medicines))
	for _, m := range v.medicines {
		out = append(out, m)
	}
	return out
}

func (v *fakeView) FindBatch(id string) (domain.Batch, bool) {
	b, ok := v.batches[id]
	return b, ok
}

func (v *fakeView) ListBatches() []domain.Batch {
	out := make([]domain.Batch, 0, len(v.batches))
	for _, b := range v.batches {
		out = append(out, b)
	}
	return out
}

func (v *fakeView) MedicineBatches(medicineID string) []domain.Batch {
	var out []domain.Batch
	for _, id := range v.byMed[medicineID] {
		out = append(out, v.batches[id])
	}
	return out
}

func (v *fakeView) Balance(holder, medicineID string) int64 {
	return v.balances[holder][medicineID]
}

func (v *fakeView) Holders(medicineID string) []domain.HolderRef {
	return v.holders[medicineID]
}

func (v *fakeView) HolderMedicines(holder string) []string {
	return v.holderMed[holder]
}

func (v *fakeView) MedicineHistory(string) []domain.SupplyChainEvent { return nil }
func (v *fakeView) BatchHistory(string) []domain.SupplyChainEvent   { return nil }

func (v *fakeView) DispensedTotal(medicineID string) int64 {
	return v.dispensed[medicineID]
}

func balancedView() *fakeView {
	return &fakeView{
		medicines: map[string]domain.Medicine{"med-1": {ID: "med-1"}},
		batches: map[string]domain.Batch{
			"batch-1": {ID: "batch-1", MedicineID: "med-1", Quantity: 100, RemainingQuantity: 40, Active: true},
		},
		byMed: map[string][]string{"med-1": {"batch-1"}},
		balances: map[string]map[string]int64{
			"0xmfr": {"med-1": 40},
			"0xpha": {"med-1": 50},
		},
		holders: map[string][]domain.HolderRef{
			"med-1": {{Holder: "0xmfr", BatchID: "batch-1"}, {Holder: "0xpha", BatchID: "batch-1"}},
		},
		holderMed: map[string][]string{
			"0xmfr": {"med-1"},
			"0xpha": {"med-1"},
		},
		dispensed: map[string]int64{"med-1": 10},
	}
}

func violationsOf(t *testing.T, rule domain.Rule, view domain.TransactionView) []domain.Violation {
	t.Helper()
	res, err := rule.Evaluate(context.Background(), view)
	if err != nil {
		t.Fatalf("evaluate %s: %v", rule.Name(), err)
	}
	return res.Violations
}

func TestConservationRule(t *testing.T) {
	rule := core.NewConservationRule()

	if v := violationsOf(t, rule, balancedView()); len(v) != 0 {
		t.Fatalf("balanced state flagged: %+v", v)
	}

	leaky := balancedView()
	leaky.balances["0xpha"]["med-1"] = 45 // 40 + 45 + 10 != 100
	v := violationsOf(t, rule, leaky)
	if len(v) != 1 || v[0].Severity != domain.SeverityBlock || v[0].MedicineID != "med-1" {
		t.Fatalf("violations = %+v", v)
	}
}

func TestNonNegativityRule(t *testing.T) {
	rule := core.NewNonNegativityRule()

	if v := violationsOf(t, rule, balancedView()); len(v) != 0 {
		t.Fatalf("balanced state flagged: %+v", v)
	}

	negative := balancedView()
	negative.balances["0xpha"]["med-1"] = -5
	v := violationsOf(t, rule, negative)
	if len(v) != 1 || v[0].Holder != "0xpha" {
		t.Fatalf("violations = %+v", v)
	}

	overdrawn := balancedView()
	b := overdrawn.batches["batch-1"]
	b.RemainingQuantity = 150
	overdrawn.batches["batch-1"] = b
	v = violationsOf(t, rule, overdrawn)
	if len(v) != 1 || v[0].MedicineID != "med-1" {
		t.Fatalf("violations = %+v", v)
	}
}

func TestIndexConsistencyRule(t *testing.T) {
	rule := core.NewIndexConsistencyRule()

	if v := violationsOf(t, rule, balancedView()); len(v) != 0 {
		t.Fatalf("balanced state flagged: %+v", v)
	}

	missing := balancedView()
	missing.holderMed["0xpha"] = nil
	v := violationsOf(t, rule, missing)
	if len(v) != 1 || v[0].Holder != "0xpha" {
		t.Fatalf("violations = %+v", v)
	}

	stale := balancedView()
	stale.balances["0xmfr"]["med-1"] = 0
	stale.balances["0xpha"]["med-1"] = 90
	v = violationsOf(t, rule, stale)
	if len(v) != 1 || v[0].Holder != "0xmfr" {
		t.Fatalf("violations = %+v", v)
	}

	duplicated := balancedView()
	duplicated.holderMed["0xpha"] = []string{"med-1", "med-1"}
	v = violationsOf(t, rule, duplicated)
	if len(v) != 1 || v[0].Rule != "index_consistency" {
		t.Fatalf("violations = %+v", v)
	}
}

func TestRulesEngineAggregates(t *testing.T) {
	engine := core.NewDefaultRulesEngine()

	broken := balancedView()
	broken.balances["0xpha"]["med-1"] = -5 // conservation and non-negativity both fire
	res, err := engine.Evaluate(context.Background(), broken)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("expected blocking violations")
	}
	if len(res.Violations) < 2 {
		t.Fatalf("violations = %+v", res.Violations)
	}
}

package core

import (
	"context"
	"fmt"

	"pharmxchain/pkg/domain"
)

// NewNonNegativityRule returns the in-transaction rule rejecting any state
// with a negative balance or an out-of-range batch allocation.
func NewNonNegativityRule() domain.Rule {
	return nonNegativityRule{}
}

type nonNegativityRule struct{}

func (nonNegativityRule) Name() string { return "non_negativity" }

func (nonNegativityRule) Evaluate(_ context.Context, view domain.TransactionView) (domain.Result, error) {
	res := domain.Result{}
	for _, med := range view.ListMedicines() {
		for _, ref := range view.Holders(med.ID) {
			if balance := view.Balance(ref.Holder, med.ID); balance < 0 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:       "non_negativity",
					Severity:   domain.SeverityBlock,
					Message:    fmt.Sprintf("holder %s has negative balance %d for medicine %s", ref.Holder, balance, med.ID),
					MedicineID: med.ID,
					Holder:     ref.Holder,
				})
			}
		}
	}
	for _, batch := range view.ListBatches() {
		if batch.RemainingQuantity < 0 || batch.RemainingQuantity > batch.Quantity {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:       "non_negativity",
				Severity:   domain.SeverityBlock,
				Message:    fmt.Sprintf("batch %s remaining %d outside [0,%d]", batch.ID, batch.RemainingQuantity, batch.Quantity),
				MedicineID: batch.MedicineID,
			})
		}
	}
	return res, nil
}

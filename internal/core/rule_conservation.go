package core

import (
	"context"
	"fmt"

	"pharmxchain/pkg/domain"
)

// NewConservationRule returns the in-transaction rule enforcing the quantity
// conservation law: for every medicine, minted quantity equals held plus
// dispensed quantity.
func NewConservationRule() domain.Rule {
	return conservationRule{}
}

type conservationRule struct{}

func (conservationRule) Name() string { return "conservation" }

func (conservationRule) Evaluate(_ context.Context, view domain.TransactionView) (domain.Result, error) {
	res := domain.Result{}
	for _, med := range view.ListMedicines() {
		var minted int64
		for _, batch := range view.MedicineBatches(med.ID) {
			minted += batch.Quantity
		}
		var held int64
		for _, ref := range view.Holders(med.ID) {
			held += view.Balance(ref.Holder, med.ID)
		}
		dispensed := view.DispensedTotal(med.ID)
		if minted != held+dispensed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:       "conservation",
				Severity:   domain.SeverityBlock,
				Message:    fmt.Sprintf("medicine %s: minted %d != held %d + dispensed %d", med.ID, minted, held, dispensed),
				MedicineID: med.ID,
			})
		}
	}
	return res, nil
}

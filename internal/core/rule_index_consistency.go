package core

import (
	"context"
	"fmt"

	"pharmxchain/pkg/domain"
)

// NewIndexConsistencyRule returns the in-transaction rule checking that every
// holder's medicine index contains exactly the medicines it has stock of,
// with no duplicates.
func NewIndexConsistencyRule() domain.Rule {
	return indexConsistencyRule{}
}

type indexConsistencyRule struct{}

func (indexConsistencyRule) Name() string { return "index_consistency" }

func (indexConsistencyRule) Evaluate(_ context.Context, view domain.TransactionView) (domain.Result, error) {
	res := domain.Result{}
	indexed := make(map[string]map[string]bool)
	holders := make(map[string]bool)
	for _, med := range view.ListMedicines() {
		for _, ref := range view.Holders(med.ID) {
			holders[ref.Holder] = true
		}
	}
	for holder := range holders {
		set := make(map[string]bool)
		for _, med := range view.HolderMedicines(holder) {
			if set[med] {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:       "index_consistency",
					Severity:   domain.SeverityBlock,
					Message:    fmt.Sprintf("holder %s indexes medicine %s twice", holder, med),
					MedicineID: med,
					Holder:     holder,
				})
			}
			set[med] = true
		}
		indexed[holder] = set
	}
	for _, med := range view.ListMedicines() {
		for _, ref := range view.Holders(med.ID) {
			balance := view.Balance(ref.Holder, med.ID)
			inIndex := indexed[ref.Holder][med.ID]
			if balance > 0 && !inIndex {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:       "index_consistency",
					Severity:   domain.SeverityBlock,
					Message:    fmt.Sprintf("holder %s has stock of %s but is not indexed", ref.Holder, med.ID),
					MedicineID: med.ID,
					Holder:     ref.Holder,
				})
			}
			if balance == 0 && inIndex {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:       "index_consistency",
					Severity:   domain.SeverityBlock,
					Message:    fmt.Sprintf("holder %s indexes %s with zero balance", ref.Holder, med.ID),
					MedicineID: med.ID,
					Holder:     ref.Holder,
				})
			}
		}
	}
	return res, nil
}

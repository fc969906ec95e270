package core

import (
	"context"

	"pharmxchain/pkg/domain"
)

// MedicineDetails returns the registered medicine record.
func (s *Service) MedicineDetails(ctx context.Context, id string) (Medicine, error) {
	med, ok := s.store.GetMedicine(id)
	if !ok {
		return Medicine{}, domain.NotFoundError{Entity: "medicine", ID: id}
	}
	return med, nil
}

// ListMedicines returns every registered medicine ordered by ID.
func (s *Service) ListMedicines(ctx context.Context) []Medicine {
	return s.store.ListMedicines()
}

// BatchDetails returns the batch record, active or not.
func (s *Service) BatchDetails(ctx context.Context, id string) (Batch, error) {
	batch, ok := s.store.GetBatch(id)
	if !ok {
		return Batch{}, domain.NotFoundError{Entity: "batch", ID: id}
	}
	return batch, nil
}

// MedicineBatches returns the batches of a medicine in creation order.
func (s *Service) MedicineBatches(ctx context.Context, medicineID string) ([]Batch, error) {
	var batches []Batch
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindMedicine(medicineID); !ok {
			return domain.NotFoundError{Entity: "medicine", ID: medicineID}
		}
		batches = view.MedicineBatches(medicineID)
		return nil
	})
	return batches, err
}

// InventoryOf returns the holder's current balance for a medicine. Unknown
// holders and holders with no stock both report zero.
func (s *Service) InventoryOf(ctx context.Context, holder, medicineID string) (int64, error) {
	if _, ok := s.store.GetMedicine(medicineID); !ok {
		return 0, domain.NotFoundError{Entity: "medicine", ID: medicineID}
	}
	return s.store.Balance(holder, medicineID), nil
}

// MedicineHistory returns the full event log for a medicine across all of
// its batches, in append order.
func (s *Service) MedicineHistory(ctx context.Context, medicineID string) ([]SupplyChainEvent, error) {
	var events []SupplyChainEvent
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindMedicine(medicineID); !ok {
			return domain.NotFoundError{Entity: "medicine", ID: medicineID}
		}
		events = view.MedicineHistory(medicineID)
		return nil
	})
	return events, err
}

// BatchHistory returns the event log scoped to one batch, in append order.
func (s *Service) BatchHistory(ctx context.Context, batchID string) ([]SupplyChainEvent, error) {
	var events []SupplyChainEvent
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindBatch(batchID); !ok {
			return domain.NotFoundError{Entity: "batch", ID: batchID}
		}
		events = view.BatchHistory(batchID)
		return nil
	})
	return events, err
}

// VerifyAuthenticity reports whether the medicine's provenance chain is
// rooted correctly: the first recorded event must be a manufacturing event
// credited to the medicine's registered manufacturer. An empty log fails
// verification.
func (s *Service) VerifyAuthenticity(ctx context.Context, medicineID string) (bool, error) {
	var authentic bool
	err := s.store.View(ctx, func(view TransactionView) error {
		med, ok := view.FindMedicine(medicineID)
		if !ok {
			return domain.NotFoundError{Entity: "medicine", ID: medicineID}
		}
		history := view.MedicineHistory(medicineID)
		if len(history) == 0 {
			return nil
		}
		root := history[0]
		authentic = root.Type == domain.EventManufactured && root.To == med.Manufacturer
		return nil
	})
	return authentic, err
}

// HoldersWithStock lists the entities currently holding stock of a medicine
// in active batches, joined with their directory details. Holders whose
// balance has drained to zero, holders of only deactivated batches, and
// holders since removed from the directory are excluded.
func (s *Service) HoldersWithStock(ctx context.Context, medicineID string) ([]HolderStock, error) {
	var rows []HolderStock
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindMedicine(medicineID); !ok {
			return domain.NotFoundError{Entity: "medicine", ID: medicineID}
		}
		seen := make(map[string]bool)
		for _, ref := range view.Holders(medicineID) {
			if seen[ref.Holder] {
				continue
			}
			seen[ref.Holder] = true
			balance := view.Balance(ref.Holder, medicineID)
			if balance <= 0 {
				continue
			}
			if batch, ok := view.FindBatch(ref.BatchID); !ok || !batch.Active {
				continue
			}
			if !s.directory.IsActive(ref.Holder) {
				continue
			}
			details, err := s.directory.Details(ref.Holder)
			if err != nil {
				continue
			}
			rows = append(rows, HolderStock{
				Holder:   ref.Holder,
				Name:     details.Name,
				Location: details.Location,
				Role:     details.Role,
				BatchID:  ref.BatchID,
				Balance:  balance,
			})
		}
		return nil
	})
	return rows, err
}

// EntityMedicines lists the medicines an entity currently holds, in the
// order the entity first acquired them, joined with registry data and the
// batch through which the stock first arrived.
func (s *Service) EntityMedicines(ctx context.Context, holder string) ([]MedicineHolding, error) {
	var rows []MedicineHolding
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, medicineID := range view.HolderMedicines(holder) {
			med, ok := view.FindMedicine(medicineID)
			if !ok {
				continue
			}
			var batchID string
			for _, ref := range view.Holders(medicineID) {
				if ref.Holder == holder {
					batchID = ref.BatchID
					break
				}
			}
			rows = append(rows, MedicineHolding{
				MedicineID: medicineID,
				BatchID:    batchID,
				Name:       med.Name,
				Brand:      med.Brand,
				Balance:    view.Balance(holder, medicineID),
			})
		}
		return nil
	})
	return rows, err
}

// DispensedTotal returns the cumulative quantity of a medicine handed to
// patients.
func (s *Service) DispensedTotal(ctx context.Context, medicineID string) (int64, error) {
	if _, ok := s.store.GetMedicine(medicineID); !ok {
		return 0, domain.NotFoundError{Entity: "medicine", ID: medicineID}
	}
	return s.store.DispensedTotal(medicineID), nil
}

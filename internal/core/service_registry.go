package core

import (
	"context"
	"time"

	"pharmxchain/pkg/domain"
)

// CreateBatchRequest carries the inputs for minting a production batch.
type CreateBatchRequest struct {
	Caller         string
	MedicineID     string
	BatchID        string
	Quantity       int64
	ProductionDate time.Time
	ExpiryDate     time.Time
}

// RegisterMedicine records a new medicine in the unapproved state. Only an
// active manufacturer may register, and the caller becomes the medicine's
// manufacturer of record.
func (s *Service) RegisterMedicine(ctx context.Context, caller, id, name, brand string) (Medicine, error) {
	if err := s.requireActiveRole(caller, domain.RoleManufacturer); err != nil {
		return Medicine{}, err
	}
	var med Medicine
	err := s.run(ctx, "register_medicine", func(tx Transaction) error {
		var txErr error
		med, txErr = tx.RegisterMedicine(domain.Medicine{ID: id, Name: name, Brand: brand, Manufacturer: caller})
		return txErr
	})
	if err != nil {
		return Medicine{}, err
	}
	s.logger.Info("medicine registered", "medicine_id", med.ID, "manufacturer", caller)
	return med, nil
}

// ApproveMedicine moves a medicine into the approved state. Regulator only,
// and approval is one-way.
func (s *Service) ApproveMedicine(ctx context.Context, caller, id string) (Medicine, error) {
	if err := s.requireActiveRole(caller, domain.RoleRegulator); err != nil {
		return Medicine{}, err
	}
	var med Medicine
	err := s.run(ctx, "approve_medicine", func(tx Transaction) error {
		var txErr error
		med, txErr = tx.ApproveMedicine(id)
		return txErr
	})
	if err != nil {
		return Medicine{}, err
	}
	s.logger.Info("medicine approved", "medicine_id", med.ID, "regulator", caller)
	return med, nil
}

// CreateBatch mints a production batch of an approved medicine. The caller
// must be the medicine's own manufacturer; the batch quantity is credited to
// the manufacturer's inventory and a provenance event is appended.
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (Batch, error) {
	if err := s.requireActiveRole(req.Caller, domain.RoleManufacturer); err != nil {
		return Batch{}, err
	}
	var batch Batch
	err := s.run(ctx, "create_batch", func(tx Transaction) error {
		var txErr error
		batch, txErr = tx.CreateBatch(domain.CreateBatchCommand{
			Caller:         req.Caller,
			MedicineID:     req.MedicineID,
			BatchID:        req.BatchID,
			Quantity:       req.Quantity,
			ProductionDate: req.ProductionDate,
			ExpiryDate:     req.ExpiryDate,
		})
		return txErr
	})
	if err != nil {
		return Batch{}, err
	}
	s.logger.Info("batch created",
		"batch_id", batch.ID,
		"medicine_id", batch.MedicineID,
		"quantity", batch.Quantity,
	)
	return batch, nil
}

// DeactivateBatch retires a batch so no further transfers or dispenses can
// touch it. Only the producing manufacturer may deactivate. Deactivating an
// already inactive batch is a no-op, reported via the boolean.
func (s *Service) DeactivateBatch(ctx context.Context, caller, batchID string) (Batch, bool, error) {
	if err := s.requireActiveRole(caller, domain.RoleManufacturer); err != nil {
		return Batch{}, false, err
	}
	var (
		batch   Batch
		changed bool
	)
	err := s.run(ctx, "deactivate_batch", func(tx Transaction) error {
		var txErr error
		batch, changed, txErr = tx.DeactivateBatch(batchID, caller, domain.DeactivationManufacturer)
		return txErr
	})
	if err != nil {
		return Batch{}, false, err
	}
	if changed {
		s.logger.Info("batch deactivated", "batch_id", batch.ID, "reason", batch.DeactivationReason)
	}
	return batch, changed, nil
}

// SweepExpiredBatches deactivates every active batch whose expiry date has
// passed and returns the batches it retired. Safe to run repeatedly.
func (s *Service) SweepExpiredBatches(ctx context.Context) ([]Batch, error) {
	var swept []Batch
	err := s.run(ctx, "sweep_expired", func(tx Transaction) error {
		var txErr error
		swept, txErr = tx.SweepExpiredBatches()
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if len(swept) > 0 {
		ids := make([]string, 0, len(swept))
		for _, b := range swept {
			ids = append(ids, b.ID)
		}
		s.logger.Info("expired batches deactivated", "count", len(swept), "batch_ids", ids)
	}
	return swept, nil
}

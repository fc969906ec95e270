package core

import (
	"context"

	"pharmxchain/pkg/domain"
)

// TransferRequest moves batch stock from a sender to a receiver.
type TransferRequest struct {
	BatchID  string
	From     string
	To       string
	Quantity int64
}

// DispenseRequest removes batch stock from circulation for a patient.
type DispenseRequest struct {
	BatchID   string
	Holder    string
	Quantity  int64
	PatientID string
}

// Transfer moves stock of a batch between custody holders. The sender must
// be registered and active; the receiver must be registered, active, and of
// a role eligible to hold stock. The event type is derived from the
// receiver's role, so the caller cannot forge provenance. When the sender is
// the manufacturer the batch's remaining mint allowance is drawn down as
// well.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (domain.TransferResult, error) {
	if !s.directory.IsActive(req.From) {
		return domain.TransferResult{}, domain.UnauthorizedError{
			Address: req.From,
			Reason:  "sender is not an active directory entity",
		}
	}
	toRole := s.directory.RoleOf(req.To)
	var result domain.TransferResult
	err := s.run(ctx, "transfer", func(tx Transaction) error {
		// Batch faults take precedence over receiver eligibility, so check
		// the batch before consulting the directory verdict.
		batch, ok := tx.Snapshot().FindBatch(req.BatchID)
		if !ok {
			return domain.NotFoundError{Entity: "batch", ID: req.BatchID}
		}
		if !batch.Active {
			return domain.BatchInactiveError{BatchID: req.BatchID, Reason: batch.DeactivationReason}
		}
		if err := receiverEligibility(req.To, toRole, s.directory.IsActive(req.To)); err != nil {
			return err
		}
		var txErr error
		result, txErr = tx.Transfer(domain.TransferCommand{
			BatchID:  req.BatchID,
			From:     req.From,
			To:       req.To,
			ToRole:   toRole,
			Quantity: req.Quantity,
		})
		return txErr
	})
	if err != nil {
		return domain.TransferResult{}, err
	}
	s.logger.Info("stock transferred",
		"batch_id", req.BatchID,
		"medicine_id", result.Event.MedicineID,
		"from", req.From,
		"to", req.To,
		"quantity", req.Quantity,
		"event_type", result.Event.Type,
	)
	s.maybeAlert(ctx, req.From, result.Event.MedicineID, req.BatchID, result.FromBalance)
	return result, nil
}

// receiverEligibility decides whether an entity may take custody of stock.
func receiverEligibility(address string, role domain.Role, active bool) error {
	switch {
	case role == domain.RoleNone:
		return domain.IneligibleReceiverError{
			Address: address,
			Role:    role,
			Reason:  "receiver is not registered in the entity directory",
		}
	case !active:
		return domain.IneligibleReceiverError{
			Address: address,
			Role:    role,
			Reason:  "receiver is deactivated",
		}
	case role == domain.RoleRegulator:
		return domain.IneligibleReceiverError{
			Address: address,
			Role:    role,
			Reason:  "regulators cannot take custody of stock",
		}
	}
	return nil
}

// Dispense hands stock to a patient, permanently removing it from
// circulation. Pharmacy holders only.
func (s *Service) Dispense(ctx context.Context, req DispenseRequest) (domain.DispenseResult, error) {
	if err := s.requireActiveRole(req.Holder, domain.RolePharmacy); err != nil {
		return domain.DispenseResult{}, err
	}
	var result domain.DispenseResult
	err := s.run(ctx, "dispense", func(tx Transaction) error {
		var txErr error
		result, txErr = tx.Dispense(domain.DispenseCommand{
			BatchID:   req.BatchID,
			Holder:    req.Holder,
			Quantity:  req.Quantity,
			PatientID: req.PatientID,
		})
		return txErr
	})
	if err != nil {
		return domain.DispenseResult{}, err
	}
	s.logger.Info("stock dispensed",
		"batch_id", req.BatchID,
		"medicine_id", result.Event.MedicineID,
		"holder", req.Holder,
		"quantity", req.Quantity,
	)
	s.maybeAlert(ctx, req.Holder, result.Event.MedicineID, req.BatchID, result.Balance)
	return result, nil
}

package domain

import (
	"context"
	"time"
)

// CreateBatchCommand mints a production lot for an approved medicine. Caller
// must be the medicine's registered manufacturer; the transaction seeds the
// manufacturer's opening balance and writes the MANUFACTURED event in the
// same atomic scope.
type CreateBatchCommand struct {
	Caller         string
	MedicineID     string
	BatchID        string
	Quantity       int64
	ProductionDate time.Time
	ExpiryDate     time.Time
}

// TransferCommand moves stock between holders. ToRole is the receiver's
// directory role, resolved by the service before the transaction starts; it
// selects the event type recorded in the log.
type TransferCommand struct {
	BatchID  string
	From     string
	To       string
	ToRole   Role
	Quantity int64
}

// TransferResult reports the post-transfer state.
type TransferResult struct {
	Event          SupplyChainEvent `json:"event"`
	FromBalance    int64            `json:"from_balance"`
	ToBalance      int64            `json:"to_balance"`
	BatchRemaining int64            `json:"batch_remaining"`
}

// DispenseCommand removes stock from the chain at a pharmacy.
type DispenseCommand struct {
	BatchID   string
	Holder    string
	Quantity  int64
	PatientID string
}

// DispenseResult reports the post-dispense state.
type DispenseResult struct {
	Event   SupplyChainEvent `json:"event"`
	Balance int64            `json:"balance"`
}

// Transaction exposes the ledger mutations a persistence implementation must
// support within an atomic scope. Balance seeding and remaining-quantity
// bookkeeping are internals of these operations and are deliberately not part
// of the interface: no caller outside the store can reach them.
type Transaction interface {
	Snapshot() TransactionView
	RegisterMedicine(m Medicine) (Medicine, error)
	ApproveMedicine(id string) (Medicine, error)
	CreateBatch(cmd CreateBatchCommand) (Batch, error)
	// DeactivateBatch is an idempotent no-op on an already-inactive batch;
	// the bool reports whether state changed.
	DeactivateBatch(batchID, caller, reason string) (Batch, bool, error)
	// SweepExpiredBatches deactivates every active batch past expiry and
	// returns the batches it touched. Safe to call repeatedly.
	SweepExpiredBatches() ([]Batch, error)
	Transfer(cmd TransferCommand) (TransferResult, error)
	Dispense(cmd DispenseCommand) (DispenseResult, error)
}

// TransactionView provides read-only access to a consistent snapshot. Rules
// and the query layer observe committed or about-to-commit state through it,
// never a half-applied operation.
type TransactionView interface {
	FindMedicine(id string) (Medicine, bool)
	ListMedicines() []Medicine
	FindBatch(id string) (Batch, bool)
	ListBatches() []Batch
	MedicineBatches(medicineID string) []Batch
	Balance(holder, medicineID string) int64
	// Holders enumerates every holder that ever received stock of the
	// medicine, in insertion order.
	Holders(medicineID string) []HolderRef
	// HolderMedicines lists the medicines the holder currently has nonzero
	// stock of, in first-acquisition order.
	HolderMedicines(holder string) []string
	MedicineHistory(medicineID string) []SupplyChainEvent
	BatchHistory(batchID string) []SupplyChainEvent
	DispensedTotal(medicineID string) int64
}

// PersistentStore is the abstraction over durable backends. Mutations run
// through RunInTransaction and commit atomically or not at all; the direct
// read helpers serve the query layer from committed state.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error)
	View(ctx context.Context, fn func(view TransactionView) error) error
	GetMedicine(id string) (Medicine, bool)
	GetBatch(id string) (Batch, bool)
	ListMedicines() []Medicine
	ListBatches() []Batch
	Balance(holder, medicineID string) int64
	Holders(medicineID string) []HolderRef
	HolderMedicines(holder string) []string
	MedicineHistory(medicineID string) []SupplyChainEvent
	BatchHistory(batchID string) []SupplyChainEvent
	DispensedTotal(medicineID string) int64
}

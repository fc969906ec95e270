// Package domain defines the persistent entities, value types, typed errors,
// and persistence contracts used by pharmxchain.
package domain

import "time"

// Role identifies the function of a registered supply-chain participant.
type Role string

// Participant roles recognised by the ledger. RoleNone marks an address the
// directory has never seen.
const (
	RoleManufacturer Role = "manufacturer"
	RoleSupplier     Role = "supplier"
	RolePharmacy     Role = "pharmacy"
	RoleRegulator    Role = "regulator"
	RoleNone         Role = "none"
)

// EventType classifies a custody-changing action in the supply-chain log.
type EventType string

// Event types recorded in the per-medicine and per-batch logs.
const (
	// EventManufactured is the opening event minted at batch creation.
	EventManufactured EventType = "MANUFACTURED"
	// EventToSupplier records a transfer received by a supplier.
	EventToSupplier EventType = "TO_SUPPLIER"
	// EventToPharmacy records a transfer received by a pharmacy.
	EventToPharmacy EventType = "TO_PHARMACY"
	// EventDispensed records stock leaving the chain to a patient.
	EventDispensed EventType = "DISPENSED"
)

// TransferEventType derives the log event type from the receiver's role.
// It is total over the roles that may hold stock; the second return is false
// for roles that can never receive a transfer.
func TransferEventType(receiver Role) (EventType, bool) {
	switch receiver {
	case RoleManufacturer:
		return EventManufactured, true
	case RoleSupplier:
		return EventToSupplier, true
	case RolePharmacy:
		return EventToPharmacy, true
	default:
		return "", false
	}
}

// MinNameLength is the minimum length accepted for medicine names and brands.
const MinNameLength = 2

// DefaultLowStockThreshold is the post-operation balance at or below which a
// low-inventory alert is raised.
const DefaultLowStockThreshold = 10

// Batch deactivation reasons recorded when a batch leaves the active state.
const (
	DeactivationManufacturer = "manufacturer"
	DeactivationExpired      = "expired"
)

// Medicine is a registered drug product. The approved flag flips exactly once;
// every other field is immutable after registration.
type Medicine struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Brand        string     `json:"brand"`
	Manufacturer string     `json:"manufacturer"`
	Approved     bool       `json:"approved"`
	RegisteredAt time.Time  `json:"registered_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

// Batch is a dated, quantity-bounded production lot of one medicine.
// RemainingQuantity tracks the manufacturer's un-transferred allocation and
// never exceeds Quantity. Inactive is terminal.
type Batch struct {
	ID                 string     `json:"id"`
	MedicineID         string     `json:"medicine_id"`
	Quantity           int64      `json:"quantity"`
	RemainingQuantity  int64      `json:"remaining_quantity"`
	ProductionDate     time.Time  `json:"production_date"`
	ExpiryDate         time.Time  `json:"expiry_date"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason string     `json:"deactivation_reason,omitempty"`
}

// Expired reports whether the batch has reached its expiry date.
func (b Batch) Expired(now time.Time) bool {
	return !now.Before(b.ExpiryDate)
}

// SupplyChainEvent is an immutable custody record. From is empty for
// MANUFACTURED events; To is empty for DISPENSED events.
type SupplyChainEvent struct {
	MedicineID string    `json:"medicine_id"`
	BatchID    string    `json:"batch_id"`
	Type       EventType `json:"type"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Quantity   int64     `json:"quantity"`
	Timestamp  time.Time `json:"timestamp"`
	PatientID  string    `json:"patient_id,omitempty"`
}

// HolderRef records that a holder received stock of a medicine, with the batch
// that first put it in possession. The per-medicine list is append-only; the
// query layer re-checks live balances when enumerating current holders.
type HolderRef struct {
	Holder  string `json:"holder"`
	BatchID string `json:"batch_id"`
}

// LowStockAlert is raised when a holder's post-operation balance for a
// medicine falls to or below the configured threshold.
type LowStockAlert struct {
	Holder     string    `json:"holder"`
	MedicineID string    `json:"medicine_id"`
	BatchID    string    `json:"batch_id"`
	Balance    int64     `json:"balance"`
	Threshold  int64     `json:"threshold"`
	At         time.Time `json:"at"`
}

// HolderStock is a query-layer row joining a live holder with directory data.
type HolderStock struct {
	Holder   string `json:"holder"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Role     Role   `json:"role"`
	BatchID  string `json:"batch_id"`
	Balance  int64  `json:"balance"`
}

// MedicineHolding is a query-layer row describing one medicine held by an
// entity, with the batch that first stocked it.
type MedicineHolding struct {
	MedicineID string `json:"medicine_id"`
	BatchID    string `json:"batch_id"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	Balance    int64  `json:"balance"`
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind partitions ledger failures for programmatic handling. Every
// failure is detected before any mutation; a returned error means the ledger
// is untouched.
type ErrorKind string

const (
	KindUnauthorized              ErrorKind = "unauthorized"
	KindNotFound                  ErrorKind = "not_found"
	KindAlreadyExists             ErrorKind = "already_exists"
	KindAlreadyApproved           ErrorKind = "already_approved"
	KindNotApproved               ErrorKind = "not_approved"
	KindInvalidInput              ErrorKind = "invalid_input"
	KindBatchInactive             ErrorKind = "batch_inactive"
	KindIneligibleReceiver        ErrorKind = "ineligible_receiver"
	KindInsufficientInventory     ErrorKind = "insufficient_inventory"
	KindInsufficientBatchQuantity ErrorKind = "insufficient_batch_quantity"
)

// Kinder is implemented by all typed ledger errors.
type Kinder interface {
	Kind() ErrorKind
}

// KindOf extracts the error kind, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}

// UnauthorizedError reports a caller lacking the required role or inactive.
type UnauthorizedError struct {
	Address  string
	Required Role
	Reason   string
}

func (e UnauthorizedError) Kind() ErrorKind { return KindUnauthorized }

func (e UnauthorizedError) Error() string {
	if e.Required != "" {
		return fmt.Sprintf("%s: role %s required (%s)", e.Address, e.Required, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Address, e.Reason)
}

// NotFoundError reports an unknown medicine, batch, or entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Kind() ErrorKind { return KindNotFound }

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// AlreadyExistsError reports a duplicate medicine or batch registration.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

func (e AlreadyExistsError) Kind() ErrorKind { return KindAlreadyExists }

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// AlreadyApprovedError reports a second approval of a medicine.
type AlreadyApprovedError struct {
	MedicineID string
}

func (e AlreadyApprovedError) Kind() ErrorKind { return KindAlreadyApproved }

func (e AlreadyApprovedError) Error() string {
	return fmt.Sprintf("medicine %s already approved", e.MedicineID)
}

// NotApprovedError reports a batch operation on an unapproved medicine.
type NotApprovedError struct {
	MedicineID string
}

func (e NotApprovedError) Kind() ErrorKind { return KindNotApproved }

func (e NotApprovedError) Error() string {
	return fmt.Sprintf("medicine %s not approved", e.MedicineID)
}

// InvalidInputError reports a rejected field value.
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e InvalidInputError) Kind() ErrorKind { return KindInvalidInput }

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// BatchInactiveError reports a movement against a deactivated batch.
type BatchInactiveError struct {
	BatchID string
	Reason  string
}

func (e BatchInactiveError) Kind() ErrorKind { return KindBatchInactive }

func (e BatchInactiveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("batch %s inactive (%s)", e.BatchID, e.Reason)
	}
	return fmt.Sprintf("batch %s inactive", e.BatchID)
}

// IneligibleReceiverError reports a transfer target that is unregistered,
// inactive, or a regulator.
type IneligibleReceiverError struct {
	Address string
	Role    Role
	Reason  string
}

func (e IneligibleReceiverError) Kind() ErrorKind { return KindIneligibleReceiver }

func (e IneligibleReceiverError) Error() string {
	return fmt.Sprintf("receiver %s ineligible: %s", e.Address, e.Reason)
}

// InsufficientInventoryError carries the requested and available quantities
// for precise client messaging.
type InsufficientInventoryError struct {
	Holder     string
	MedicineID string
	Requested  int64
	Available  int64
}

func (e InsufficientInventoryError) Kind() ErrorKind { return KindInsufficientInventory }

func (e InsufficientInventoryError) Error() string {
	return fmt.Sprintf("holder %s has %d of medicine %s, requested %d",
		e.Holder, e.Available, e.MedicineID, e.Requested)
}

// InsufficientBatchQuantityError reports a manufacturer transfer exceeding
// the batch's remaining allocation.
type InsufficientBatchQuantityError struct {
	BatchID   string
	Requested int64
	Remaining int64
}

func (e InsufficientBatchQuantityError) Kind() ErrorKind { return KindInsufficientBatchQuantity }

func (e InsufficientBatchQuantityError) Error() string {
	return fmt.Sprintf("batch %s has %d remaining, requested %d",
		e.BatchID, e.Remaining, e.Requested)
}

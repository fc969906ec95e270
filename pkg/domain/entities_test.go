package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTransferEventType(t *testing.T) {
	cases := []struct {
		role Role
		want EventType
		ok   bool
	}{
		{RoleManufacturer, EventManufactured, true},
		{RoleSupplier, EventToSupplier, true},
		{RolePharmacy, EventToPharmacy, true},
		{RoleRegulator, "", false},
		{RoleNone, "", false},
	}
	for _, tc := range cases {
		got, ok := TransferEventType(tc.role)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("TransferEventType(%s) = (%s, %v), want (%s, %v)", tc.role, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBatchExpired(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b := Batch{ExpiryDate: expiry}

	if b.Expired(expiry.Add(-time.Second)) {
		t.Fatal("batch expired before expiry date")
	}
	if !b.Expired(expiry) {
		t.Fatal("batch not expired at exact expiry instant")
	}
	if !b.Expired(expiry.Add(time.Hour)) {
		t.Fatal("batch not expired after expiry date")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{UnauthorizedError{Address: "a"}, KindUnauthorized},
		{NotFoundError{Entity: "medicine", ID: "m1"}, KindNotFound},
		{AlreadyExistsError{Entity: "batch", ID: "b1"}, KindAlreadyExists},
		{AlreadyApprovedError{MedicineID: "m1"}, KindAlreadyApproved},
		{NotApprovedError{MedicineID: "m1"}, KindNotApproved},
		{InvalidInputError{Field: "quantity"}, KindInvalidInput},
		{BatchInactiveError{BatchID: "b1"}, KindBatchInactive},
		{IneligibleReceiverError{Address: "r"}, KindIneligibleReceiver},
		{InsufficientInventoryError{Holder: "h"}, KindInsufficientInventory},
		{InsufficientBatchQuantityError{BatchID: "b1"}, KindInsufficientBatchQuantity},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%T) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain error) = %s, want empty", got)
	}
}

func TestKindOfWrappedError(t *testing.T) {
	wrapped := errorsJoin(NotFoundError{Entity: "batch", ID: "b9"})
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("KindOf(wrapped) = %s, want %s", got, KindNotFound)
	}
}

func errorsJoin(err error) error {
	return wrapErr{err}
}

type wrapErr struct{ inner error }

func (w wrapErr) Error() string { return "wrapped: " + w.inner.Error() }
func (w wrapErr) Unwrap() error { return w.inner }

func TestInsufficientInventoryErrorMessage(t *testing.T) {
	err := InsufficientInventoryError{Holder: "pharmacy-1", MedicineID: "m1", Requested: 50, Available: 20}
	want := "holder pharmacy-1 has 20 of medicine m1, requested 50"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

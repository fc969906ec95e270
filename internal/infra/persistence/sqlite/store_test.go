package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pharmxchain/internal/core"
	"pharmxchain/internal/infra/persistence/sqlite"
	"pharmxchain/pkg/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(path, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	store.SetNowFunc(func() time.Time { return testNow })
	return store
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store := openStore(t, path)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.RegisterMedicine(domain.Medicine{ID: "med-1", Name: "Amoxicillin", Brand: "Amoxil", Manufacturer: "0xmfr"}); err != nil {
			return err
		}
		if _, err := tx.ApproveMedicine("med-1"); err != nil {
			return err
		}
		if _, err := tx.CreateBatch(domain.CreateBatchCommand{
			Caller:         "0xmfr",
			MedicineID:     "med-1",
			BatchID:        "batch-1",
			Quantity:       1000,
			ProductionDate: testNow.AddDate(0, -1, 0),
			ExpiryDate:     testNow.AddDate(1, 0, 0),
		}); err != nil {
			return err
		}
		_, err := tx.Transfer(domain.TransferCommand{
			BatchID: "batch-1", From: "0xmfr", To: "0xpha", ToRole: domain.RolePharmacy, Quantity: 40,
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	defer func() { _ = reopened.Close() }()

	med, ok := reopened.GetMedicine("med-1")
	if !ok || !med.Approved {
		t.Fatalf("medicine not restored: %+v ok=%v", med, ok)
	}
	batch, ok := reopened.GetBatch("batch-1")
	if !ok || batch.RemainingQuantity != 960 || !batch.Active {
		t.Fatalf("batch not restored: %+v ok=%v", batch, ok)
	}
	if got := reopened.Balance("0xpha", "med-1"); got != 40 {
		t.Fatalf("pharmacy balance = %d, want 40", got)
	}
	if history := reopened.MedicineHistory("med-1"); len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}

	// The restored store keeps working: dispense against hydrated state.
	_, err = reopened.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.Dispense(domain.DispenseCommand{
			BatchID: "batch-1", Holder: "0xpha", Quantity: 40, PatientID: "patient-1",
		})
		return err
	})
	if err != nil {
		t.Fatalf("dispense after reopen: %v", err)
	}
	if got := reopened.DispensedTotal("med-1"); got != 40 {
		t.Fatalf("dispensed total = %d, want 40", got)
	}
}

func TestFailedTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store := openStore(t, path)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.RegisterMedicine(domain.Medicine{ID: "", Name: "Aspirin", Brand: "Bayer"})
		return err
	})
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	defer func() { _ = reopened.Close() }()
	if meds := reopened.ListMedicines(); len(meds) != 0 {
		t.Fatalf("rejected medicine was persisted: %+v", meds)
	}
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "ledger.db")
	store := openStore(t, path)
	defer func() { _ = store.Close() }()
	if store.Path() != path {
		t.Fatalf("Path() = %s, want %s", store.Path(), path)
	}
}

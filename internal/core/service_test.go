package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"pharmxchain/internal/core"
	"pharmxchain/internal/directory"
	"pharmxchain/internal/infra/persistence/memory"
	"pharmxchain/pkg/domain"
)

const (
	mfr       = "0xmfr"
	supplier  = "0xsup"
	pharmacy  = "0xpha"
	regulator = "0xreg"
)

var (
	now        = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	production = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry     = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
)

type captureSink struct {
	mu     sync.Mutex
	alerts []domain.LowStockAlert
}

func (c *captureSink) Notify(_ context.Context, alert domain.LowStockAlert) {
	c.mu.Lock()
	c.alerts = append(c.alerts, alert)
	c.mu.Unlock()
}

func (c *captureSink) all() []domain.LowStockAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LowStockAlert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func newDirectory(t *testing.T) *directory.InMemory {
	t.Helper()
	dir := directory.NewInMemory()
	register := func(addr, name string, role domain.Role) {
		t.Helper()
		if _, err := dir.Register(addr, name, "Basel", "LIC-"+addr, role); err != nil {
			t.Fatalf("register %s: %v", addr, err)
		}
	}
	register(mfr, "Helvetia Pharma", domain.RoleManufacturer)
	register(supplier, "Alpine Logistics", domain.RoleSupplier)
	register(pharmacy, "Bahnhof Apotheke", domain.RolePharmacy)
	register(regulator, "SwissMedic", domain.RoleRegulator)
	return dir
}

func newService(t *testing.T, opts ...core.Option) (*core.Service, *directory.InMemory) {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	store.SetNowFunc(func() time.Time { return now })
	dir := newDirectory(t)
	return core.NewService(store, dir, opts...), dir
}

func seedBatch(t *testing.T, svc *core.Service, quantity int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.RegisterMedicine(ctx, mfr, "med-1", "Amoxicillin", "Amoxil"); err != nil {
		t.Fatalf("register medicine: %v", err)
	}
	if _, err := svc.ApproveMedicine(ctx, regulator, "med-1"); err != nil {
		t.Fatalf("approve medicine: %v", err)
	}
	if _, err := svc.CreateBatch(ctx, core.CreateBatchRequest{
		Caller:         mfr,
		MedicineID:     "med-1",
		BatchID:        "batch-1",
		Quantity:       quantity,
		ProductionDate: production,
		ExpiryDate:     expiry,
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}
}

func TestRegisterMedicineRequiresManufacturer(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller string
	}{
		{"supplier caller", supplier},
		{"regulator caller", regulator},
		{"unregistered caller", "0xnobody"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterMedicine(ctx, tc.caller, "med-x", "Ibuprofen", "Brufen")
			if domain.KindOf(err) != domain.KindUnauthorized {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}

	if err := dir.Deactivate(mfr); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := svc.RegisterMedicine(ctx, mfr, "med-x", "Ibuprofen", "Brufen")
	if domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("deactivated manufacturer should be unauthorized, got %v", err)
	}
}

func TestApproveMedicineRequiresRegulator(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.RegisterMedicine(ctx, mfr, "med-1", "Amoxicillin", "Amoxil"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ApproveMedicine(ctx, mfr, "med-1"); domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("manufacturer approval should be unauthorized, got %v", err)
	}
	med, err := svc.ApproveMedicine(ctx, regulator, "med-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !med.Approved {
		t.Fatalf("medicine not approved: %+v", med)
	}
}

func TestTransferReceiverEligibility(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	_, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: "0xghost", Quantity: 10})
	if domain.KindOf(err) != domain.KindIneligibleReceiver {
		t.Fatalf("unregistered receiver: got %v", err)
	}

	_, err = svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: regulator, Quantity: 10})
	if domain.KindOf(err) != domain.KindIneligibleReceiver {
		t.Fatalf("regulator receiver: got %v", err)
	}

	if err := dir.Deactivate(supplier); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: supplier, Quantity: 10})
	if domain.KindOf(err) != domain.KindIneligibleReceiver {
		t.Fatalf("deactivated receiver: got %v", err)
	}

	_, err = svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: "0xghost", To: pharmacy, Quantity: 10})
	if domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("unregistered sender: got %v", err)
	}
}

func TestTransferBatchFaultsPrecedeReceiverChecks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	_, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-missing", From: mfr, To: regulator, Quantity: 10})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("missing batch with regulator receiver: got %v", err)
	}

	if _, _, err := svc.DeactivateBatch(ctx, mfr, "batch-1"); err != nil {
		t.Fatalf("deactivate batch: %v", err)
	}
	_, err = svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: regulator, Quantity: 10})
	if domain.KindOf(err) != domain.KindBatchInactive {
		t.Fatalf("inactive batch with regulator receiver: got %v", err)
	}
}

func TestTransferDerivesEventTypeFromReceiverRole(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	res, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: supplier, Quantity: 300})
	if err != nil {
		t.Fatalf("transfer to supplier: %v", err)
	}
	if res.Event.Type != domain.EventToSupplier {
		t.Fatalf("event type = %s, want %s", res.Event.Type, domain.EventToSupplier)
	}
	if res.FromBalance != 700 || res.ToBalance != 300 {
		t.Fatalf("balances = %d/%d, want 700/300", res.FromBalance, res.ToBalance)
	}

	res, err = svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: supplier, To: pharmacy, Quantity: 120})
	if err != nil {
		t.Fatalf("transfer to pharmacy: %v", err)
	}
	if res.Event.Type != domain.EventToPharmacy {
		t.Fatalf("event type = %s, want %s", res.Event.Type, domain.EventToPharmacy)
	}
}

func TestDispenseRequiresActivePharmacy(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)
	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: pharmacy, Quantity: 100}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	_, err := svc.Dispense(ctx, core.DispenseRequest{BatchID: "batch-1", Holder: supplier, Quantity: 10, PatientID: "patient-1"})
	if domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("supplier dispensing: got %v", err)
	}

	if err := dir.Deactivate(pharmacy); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.Dispense(ctx, core.DispenseRequest{BatchID: "batch-1", Holder: pharmacy, Quantity: 10, PatientID: "patient-1"})
	if domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("deactivated pharmacy dispensing: got %v", err)
	}

	if err := dir.Activate(pharmacy); err != nil {
		t.Fatalf("activate: %v", err)
	}
	res, err := svc.Dispense(ctx, core.DispenseRequest{BatchID: "batch-1", Holder: pharmacy, Quantity: 10, PatientID: "patient-1"})
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if res.Event.Type != domain.EventDispensed || res.Balance != 90 {
		t.Fatalf("dispense result: %+v", res)
	}
}

func TestLowStockAlerts(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newService(t, core.WithAlertSink(sink), core.WithLowStockThreshold(50))
	ctx := context.Background()
	seedBatch(t, svc, 200)

	// 200 -> 140 stays above the threshold: no alert.
	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: pharmacy, Quantity: 60}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := sink.all(); len(got) != 0 {
		t.Fatalf("unexpected alerts: %+v", got)
	}

	// 140 -> 50 hits the threshold exactly: sender alert fires.
	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: pharmacy, Quantity: 90}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	alerts := sink.all()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Holder != mfr || alerts[0].Balance != 50 || alerts[0].Threshold != 50 {
		t.Fatalf("alert = %+v", alerts[0])
	}

	// Dispensing down to zero still alerts the pharmacy.
	if _, err := svc.Dispense(ctx, core.DispenseRequest{BatchID: "batch-1", Holder: pharmacy, Quantity: 150, PatientID: "patient-9"}); err != nil {
		t.Fatalf("dispense: %v", err)
	}
	alerts = sink.all()
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	if alerts[1].Holder != pharmacy || alerts[1].Balance != 0 {
		t.Fatalf("alert = %+v", alerts[1])
	}
}

func TestFailedTransferRaisesNoAlert(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newService(t, core.WithAlertSink(sink), core.WithLowStockThreshold(1000))
	ctx := context.Background()
	seedBatch(t, svc, 100)

	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: supplier, Quantity: 500}); err == nil {
		t.Fatal("expected insufficient inventory error")
	}
	if got := sink.all(); len(got) != 0 {
		t.Fatalf("failed transfer raised alerts: %+v", got)
	}
}

func TestVerifyAuthenticity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.VerifyAuthenticity(ctx, "med-missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("unknown medicine: got %v", err)
	}

	if _, err := svc.RegisterMedicine(ctx, mfr, "med-1", "Amoxicillin", "Amoxil"); err != nil {
		t.Fatalf("register: %v", err)
	}
	ok, err := svc.VerifyAuthenticity(ctx, "med-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("medicine with no events must not verify")
	}

	if _, err := svc.ApproveMedicine(ctx, regulator, "med-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.CreateBatch(ctx, core.CreateBatchRequest{
		Caller: mfr, MedicineID: "med-1", BatchID: "batch-1", Quantity: 100,
		ProductionDate: production, ExpiryDate: expiry,
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	ok, err = svc.VerifyAuthenticity(ctx, "med-1")
	if err != nil || !ok {
		t.Fatalf("minted medicine should verify, ok=%v err=%v", ok, err)
	}
}

func TestHoldersWithStockFilters(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: supplier, Quantity: 400}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: supplier, To: pharmacy, Quantity: 400}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	holders, err := svc.HoldersWithStock(ctx, "med-1")
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	// Supplier drained to zero and is excluded; manufacturer and pharmacy remain.
	if len(holders) != 2 {
		t.Fatalf("holders = %+v, want 2 rows", holders)
	}
	if holders[0].Holder != mfr || holders[0].Balance != 600 || holders[0].Name != "Helvetia Pharma" {
		t.Fatalf("first holder = %+v", holders[0])
	}
	if holders[1].Holder != pharmacy || holders[1].Balance != 400 || holders[1].Role != domain.RolePharmacy {
		t.Fatalf("second holder = %+v", holders[1])
	}

	if err := dir.Deactivate(pharmacy); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	holders, err = svc.HoldersWithStock(ctx, "med-1")
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 1 || holders[0].Holder != mfr {
		t.Fatalf("deactivated holder not excluded: %+v", holders)
	}

	if _, _, err := svc.DeactivateBatch(ctx, mfr, "batch-1"); err != nil {
		t.Fatalf("deactivate batch: %v", err)
	}
	holders, err = svc.HoldersWithStock(ctx, "med-1")
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 0 {
		t.Fatalf("inactive batch holders not excluded: %+v", holders)
	}
}

func TestEntityMedicines(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	if _, err := svc.RegisterMedicine(ctx, mfr, "med-2", "Paracetamol", "Panadol"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ApproveMedicine(ctx, regulator, "med-2"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.CreateBatch(ctx, core.CreateBatchRequest{
		Caller: mfr, MedicineID: "med-2", BatchID: "batch-2", Quantity: 500,
		ProductionDate: production, ExpiryDate: expiry,
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-2", From: mfr, To: supplier, Quantity: 50}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: supplier, Quantity: 70}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	holdings, err := svc.EntityMedicines(ctx, supplier)
	if err != nil {
		t.Fatalf("entity medicines: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("holdings = %+v, want 2", holdings)
	}
	// Acquisition order: med-2 arrived first.
	if holdings[0].MedicineID != "med-2" || holdings[0].Balance != 50 || holdings[0].BatchID != "batch-2" {
		t.Fatalf("first holding = %+v", holdings[0])
	}
	if holdings[1].MedicineID != "med-1" || holdings[1].Balance != 70 || holdings[1].Brand != "Amoxil" {
		t.Fatalf("second holding = %+v", holdings[1])
	}

	if got, err := svc.EntityMedicines(ctx, "0xghost"); err != nil || len(got) != 0 {
		t.Fatalf("unknown holder: got %+v err %v", got, err)
	}
}

func TestInventoryAndDispensedQueries(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	if _, err := svc.InventoryOf(ctx, mfr, "med-missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatal("unknown medicine must be not found")
	}
	if balance, err := svc.InventoryOf(ctx, "0xghost", "med-1"); err != nil || balance != 0 {
		t.Fatalf("unknown holder balance = %d err %v", balance, err)
	}

	if _, err := svc.Transfer(ctx, core.TransferRequest{BatchID: "batch-1", From: mfr, To: pharmacy, Quantity: 100}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := svc.Dispense(ctx, core.DispenseRequest{BatchID: "batch-1", Holder: pharmacy, Quantity: 30, PatientID: "patient-2"}); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	total, err := svc.DispensedTotal(ctx, "med-1")
	if err != nil || total != 30 {
		t.Fatalf("dispensed total = %d err %v", total, err)
	}
	history, err := svc.MedicineHistory(ctx, "med-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
}

func TestSweepExpiredBatchesViaService(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedBatch(t, svc, 1000)

	if _, err := svc.CreateBatch(ctx, core.CreateBatchRequest{
		Caller: mfr, MedicineID: "med-1", BatchID: "batch-old", Quantity: 10,
		ProductionDate: now.AddDate(-2, 0, 0), ExpiryDate: now.AddDate(-1, 0, 0),
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	swept, err := svc.SweepExpiredBatches(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(swept) != 1 || swept[0].ID != "batch-old" || swept[0].DeactivationReason != domain.DeactivationExpired {
		t.Fatalf("swept = %+v", swept)
	}
	swept, err = svc.SweepExpiredBatches(ctx)
	if err != nil || len(swept) != 0 {
		t.Fatalf("second sweep = %+v err %v", swept, err)
	}
}

// Package memory provides the canonical in-memory transactional store for the
// custody ledger. Durable backends wrap it and persist snapshots after each
// successful commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pharmxchain/pkg/domain"
)

type (
	Medicine         = domain.Medicine
	Batch            = domain.Batch
	SupplyChainEvent = domain.SupplyChainEvent
	HolderRef        = domain.HolderRef
	Transaction      = domain.Transaction
	TransactionView  = domain.TransactionView
	RulesEngine      = domain.RulesEngine
	Result           = domain.Result
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	medicines       map[string]Medicine
	batches         map[string]Batch
	medicineBatches map[string][]string // medicine -> batch ids, insertion order
	balances        map[string]map[string]int64
	holderIndex     map[string][]HolderRef // medicine -> ever-holders, append-only
	holderSeen      map[string]map[string]bool
	holderMedicines map[string][]string // holder -> medicines with nonzero stock
	medicineEvents  map[string][]SupplyChainEvent
	batchEvents     map[string][]SupplyChainEvent
	dispensed       map[string]int64
}

func newMemoryState() memoryState {
	return memoryState{
		medicines:       make(map[string]Medicine),
		batches:         make(map[string]Batch),
		medicineBatches: make(map[string][]string),
		balances:        make(map[string]map[string]int64),
		holderIndex:     make(map[string][]HolderRef),
		holderSeen:      make(map[string]map[string]bool),
		holderMedicines: make(map[string][]string),
		medicineEvents:  make(map[string][]SupplyChainEvent),
		batchEvents:     make(map[string][]SupplyChainEvent),
		dispensed:       make(map[string]int64),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.medicines {
		cloned.medicines[k] = cloneMedicine(v)
	}
	for k, v := range s.batches {
		cloned.batches[k] = cloneBatch(v)
	}
	for k, v := range s.medicineBatches {
		cloned.medicineBatches[k] = append([]string(nil), v...)
	}
	for holder, meds := range s.balances {
		inner := make(map[string]int64, len(meds))
		for med, qty := range meds {
			inner[med] = qty
		}
		cloned.balances[holder] = inner
	}
	for k, v := range s.holderIndex {
		cloned.holderIndex[k] = append([]HolderRef(nil), v...)
	}
	for k, v := range s.holderSeen {
		inner := make(map[string]bool, len(v))
		for holder := range v {
			inner[holder] = true
		}
		cloned.holderSeen[k] = inner
	}
	for k, v := range s.holderMedicines {
		cloned.holderMedicines[k] = append([]string(nil), v...)
	}
	for k, v := range s.medicineEvents {
		cloned.medicineEvents[k] = append([]SupplyChainEvent(nil), v...)
	}
	for k, v := range s.batchEvents {
		cloned.batchEvents[k] = append([]SupplyChainEvent(nil), v...)
	}
	for k, v := range s.dispensed {
		cloned.dispensed[k] = v
	}
	return cloned
}

func cloneMedicine(m Medicine) Medicine {
	cp := m
	if m.ApprovedAt != nil {
		t := *m.ApprovedAt
		cp.ApprovedAt = &t
	}
	return cp
}

func cloneBatch(b Batch) Batch {
	cp := b
	if b.DeactivatedAt != nil {
		t := *b.DeactivatedAt
		cp.DeactivatedAt = &t
	}
	return cp
}

// Store is the in-memory transactional ledger store. Mutations clone the
// whole state, apply within the clone, run the invariant rules, and commit by
// swapping the state under the write lock, so a failed operation leaves
// nothing behind and readers never observe a half-applied transfer.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider; intended for tests and schedulers
// that need a deterministic clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// RulesEngine exposes the configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

type transaction struct {
	state memoryState
	now   time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The commit is withheld when fn fails or when a blocking invariant violation
// is detected against the resulting state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(view TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// RegisterMedicine stores a new, unapproved medicine definition.
func (tx *transaction) RegisterMedicine(m Medicine) (Medicine, error) {
	if m.ID == "" {
		return Medicine{}, domain.InvalidInputError{Field: "id", Value: m.ID, Reason: "must not be empty"}
	}
	if len(m.Name) < domain.MinNameLength {
		return Medicine{}, domain.InvalidInputError{Field: "name", Value: m.Name, Reason: "too short"}
	}
	if len(m.Brand) < domain.MinNameLength {
		return Medicine{}, domain.InvalidInputError{Field: "brand", Value: m.Brand, Reason: "too short"}
	}
	if _, exists := tx.state.medicines[m.ID]; exists {
		return Medicine{}, domain.AlreadyExistsError{Entity: "medicine", ID: m.ID}
	}
	m.Approved = false
	m.ApprovedAt = nil
	m.RegisteredAt = tx.now
	tx.state.medicines[m.ID] = cloneMedicine(m)
	return cloneMedicine(m), nil
}

// ApproveMedicine flips the approved flag exactly once.
func (tx *transaction) ApproveMedicine(id string) (Medicine, error) {
	m, ok := tx.state.medicines[id]
	if !ok {
		return Medicine{}, domain.NotFoundError{Entity: "medicine", ID: id}
	}
	if m.Approved {
		return Medicine{}, domain.AlreadyApprovedError{MedicineID: id}
	}
	m.Approved = true
	approvedAt := tx.now
	m.ApprovedAt = &approvedAt
	tx.state.medicines[id] = cloneMedicine(m)
	return cloneMedicine(m), nil
}

// CreateBatch mints a production lot, seeds the manufacturer's opening
// balance, and appends the MANUFACTURED root event in one atomic step.
func (tx *transaction) CreateBatch(cmd domain.CreateBatchCommand) (Batch, error) {
	med, ok := tx.state.medicines[cmd.MedicineID]
	if !ok {
		return Batch{}, domain.NotFoundError{Entity: "medicine", ID: cmd.MedicineID}
	}
	if cmd.Caller != med.Manufacturer {
		return Batch{}, domain.UnauthorizedError{Address: cmd.Caller, Reason: "caller is not the registering manufacturer"}
	}
	if !med.Approved {
		return Batch{}, domain.NotApprovedError{MedicineID: cmd.MedicineID}
	}
	if cmd.Quantity <= 0 {
		return Batch{}, domain.InvalidInputError{Field: "quantity", Value: cmd.Quantity, Reason: "must be positive"}
	}
	if !cmd.ExpiryDate.After(cmd.ProductionDate) {
		return Batch{}, domain.InvalidInputError{Field: "expiry_date", Value: cmd.ExpiryDate, Reason: "must be after production date"}
	}
	if _, exists := tx.state.batches[cmd.BatchID]; exists {
		return Batch{}, domain.AlreadyExistsError{Entity: "batch", ID: cmd.BatchID}
	}

	batch := Batch{
		ID:                cmd.BatchID,
		MedicineID:        cmd.MedicineID,
		Quantity:          cmd.Quantity,
		RemainingQuantity: cmd.Quantity,
		ProductionDate:    cmd.ProductionDate,
		ExpiryDate:        cmd.ExpiryDate,
		Active:            true,
		CreatedAt:         tx.now,
	}
	tx.state.batches[batch.ID] = cloneBatch(batch)
	tx.state.medicineBatches[cmd.MedicineID] = append(tx.state.medicineBatches[cmd.MedicineID], batch.ID)

	tx.credit(med.Manufacturer, cmd.MedicineID, batch.ID, cmd.Quantity)
	tx.appendEvent(SupplyChainEvent{
		MedicineID: cmd.MedicineID,
		BatchID:    batch.ID,
		Type:       domain.EventManufactured,
		To:         med.Manufacturer,
		Quantity:   cmd.Quantity,
		Timestamp:  tx.now,
	})
	return cloneBatch(batch), nil
}

// DeactivateBatch retires a batch. Already-inactive batches are untouched.
func (tx *transaction) DeactivateBatch(batchID, caller, reason string) (Batch, bool, error) {
	batch, ok := tx.state.batches[batchID]
	if !ok {
		return Batch{}, false, domain.NotFoundError{Entity: "batch", ID: batchID}
	}
	med := tx.state.medicines[batch.MedicineID]
	if caller != med.Manufacturer {
		return Batch{}, false, domain.UnauthorizedError{Address: caller, Reason: "caller is not the batch manufacturer"}
	}
	if !batch.Active {
		return cloneBatch(batch), false, nil
	}
	tx.deactivate(&batch, reason)
	return cloneBatch(batch), true, nil
}

// SweepExpiredBatches deactivates every active batch past expiry. Repeated
// sweeps are no-ops and the result is independent of iteration order.
func (tx *transaction) SweepExpiredBatches() ([]Batch, error) {
	var swept []Batch
	for id, batch := range tx.state.batches {
		if !batch.Active || !batch.Expired(tx.now) {
			continue
		}
		tx.deactivate(&batch, domain.DeactivationExpired)
		swept = append(swept, cloneBatch(tx.state.batches[id]))
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].ID < swept[j].ID })
	return swept, nil
}

func (tx *transaction) deactivate(batch *Batch, reason string) {
	batch.Active = false
	deactivatedAt := tx.now
	batch.DeactivatedAt = &deactivatedAt
	batch.DeactivationReason = reason
	tx.state.batches[batch.ID] = cloneBatch(*batch)
}

// Transfer moves stock between holders. Every check runs before the first
// mutation, so a failure leaves balances, indices, and logs unchanged even
// within the transactional clone.
func (tx *transaction) Transfer(cmd domain.TransferCommand) (domain.TransferResult, error) {
	batch, ok := tx.state.batches[cmd.BatchID]
	if !ok {
		return domain.TransferResult{}, domain.NotFoundError{Entity: "batch", ID: cmd.BatchID}
	}
	if !batch.Active {
		return domain.TransferResult{}, domain.BatchInactiveError{BatchID: cmd.BatchID, Reason: batch.DeactivationReason}
	}
	if cmd.Quantity <= 0 {
		return domain.TransferResult{}, domain.InvalidInputError{Field: "quantity", Value: cmd.Quantity, Reason: "must be positive"}
	}
	eventType, ok := domain.TransferEventType(cmd.ToRole)
	if !ok {
		return domain.TransferResult{}, domain.IneligibleReceiverError{Address: cmd.To, Role: cmd.ToRole, Reason: "role cannot hold stock"}
	}
	med := tx.state.medicines[batch.MedicineID]
	fromManufacturer := cmd.From == med.Manufacturer
	if fromManufacturer && batch.RemainingQuantity < cmd.Quantity {
		return domain.TransferResult{}, domain.InsufficientBatchQuantityError{
			BatchID:   cmd.BatchID,
			Requested: cmd.Quantity,
			Remaining: batch.RemainingQuantity,
		}
	}
	available := tx.balance(cmd.From, batch.MedicineID)
	if available < cmd.Quantity {
		return domain.TransferResult{}, domain.InsufficientInventoryError{
			Holder:     cmd.From,
			MedicineID: batch.MedicineID,
			Requested:  cmd.Quantity,
			Available:  available,
		}
	}

	if fromManufacturer {
		batch.RemainingQuantity -= cmd.Quantity
		tx.state.batches[batch.ID] = cloneBatch(batch)
	}
	fromBalance := tx.debit(cmd.From, batch.MedicineID, cmd.Quantity)
	toBalance := tx.credit(cmd.To, batch.MedicineID, cmd.BatchID, cmd.Quantity)

	event := SupplyChainEvent{
		MedicineID: batch.MedicineID,
		BatchID:    cmd.BatchID,
		Type:       eventType,
		From:       cmd.From,
		To:         cmd.To,
		Quantity:   cmd.Quantity,
		Timestamp:  tx.now,
	}
	tx.appendEvent(event)

	return domain.TransferResult{
		Event:          event,
		FromBalance:    fromBalance,
		ToBalance:      toBalance,
		BatchRemaining: tx.state.batches[batch.ID].RemainingQuantity,
	}, nil
}

// Dispense removes stock from the chain at a pharmacy; there is no credit
// side, the quantity is accounted as dispensed for conservation.
func (tx *transaction) Dispense(cmd domain.DispenseCommand) (domain.DispenseResult, error) {
	batch, ok := tx.state.batches[cmd.BatchID]
	if !ok {
		return domain.DispenseResult{}, domain.NotFoundError{Entity: "batch", ID: cmd.BatchID}
	}
	if !batch.Active {
		return domain.DispenseResult{}, domain.BatchInactiveError{BatchID: cmd.BatchID, Reason: batch.DeactivationReason}
	}
	if cmd.Quantity <= 0 {
		return domain.DispenseResult{}, domain.InvalidInputError{Field: "quantity", Value: cmd.Quantity, Reason: "must be positive"}
	}
	if cmd.PatientID == "" {
		return domain.DispenseResult{}, domain.InvalidInputError{Field: "patient_id", Value: cmd.PatientID, Reason: "must not be empty"}
	}
	available := tx.balance(cmd.Holder, batch.MedicineID)
	if available < cmd.Quantity {
		return domain.DispenseResult{}, domain.InsufficientInventoryError{
			Holder:     cmd.Holder,
			MedicineID: batch.MedicineID,
			Requested:  cmd.Quantity,
			Available:  available,
		}
	}

	balance := tx.debit(cmd.Holder, batch.MedicineID, cmd.Quantity)
	tx.state.dispensed[batch.MedicineID] += cmd.Quantity

	event := SupplyChainEvent{
		MedicineID: batch.MedicineID,
		BatchID:    cmd.BatchID,
		Type:       domain.EventDispensed,
		From:       cmd.Holder,
		Quantity:   cmd.Quantity,
		Timestamp:  tx.now,
		PatientID:  cmd.PatientID,
	}
	tx.appendEvent(event)

	return domain.DispenseResult{
		Event:   event,
		Balance: balance,
	}, nil
}

func (tx *transaction) balance(holder, medicineID string) int64 {
	return tx.state.balances[holder][medicineID]
}

// credit adds stock to a holder, maintaining both indices: the append-only
// per-medicine holder list and the holder's live medicine set.
func (tx *transaction) credit(holder, medicineID, batchID string, quantity int64) int64 {
	meds := tx.state.balances[holder]
	if meds == nil {
		meds = make(map[string]int64)
		tx.state.balances[holder] = meds
	}
	previous := meds[medicineID]
	meds[medicineID] = previous + quantity

	if previous == 0 {
		tx.state.holderMedicines[holder] = append(tx.state.holderMedicines[holder], medicineID)
	}
	seen := tx.state.holderSeen[medicineID]
	if seen == nil {
		seen = make(map[string]bool)
		tx.state.holderSeen[medicineID] = seen
	}
	if !seen[holder] {
		seen[holder] = true
		tx.state.holderIndex[medicineID] = append(tx.state.holderIndex[medicineID], HolderRef{Holder: holder, BatchID: batchID})
	}
	return meds[medicineID]
}

// debit removes stock, already validated as available, and prunes the live
// medicine set when the balance reaches zero. The holder index is never
// pruned; the query layer filters it against live balances.
func (tx *transaction) debit(holder, medicineID string, quantity int64) int64 {
	meds := tx.state.balances[holder]
	remaining := meds[medicineID] - quantity
	if remaining == 0 {
		delete(meds, medicineID)
		tx.state.holderMedicines[holder] = removeString(tx.state.holderMedicines[holder], medicineID)
	} else {
		meds[medicineID] = remaining
	}
	return remaining
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func (tx *transaction) appendEvent(event SupplyChainEvent) {
	tx.state.medicineEvents[event.MedicineID] = append(tx.state.medicineEvents[event.MedicineID], event)
	tx.state.batchEvents[event.BatchID] = append(tx.state.batchEvents[event.BatchID], event)
}

package memory

import "sort"

// FindMedicine retrieves a medicine by id from the snapshot.
func (v transactionView) FindMedicine(id string) (Medicine, bool) {
	m, ok := v.state.medicines[id]
	if !ok {
		return Medicine{}, false
	}
	return cloneMedicine(m), true
}

// ListMedicines returns all medicines ordered by id.
func (v transactionView) ListMedicines() []Medicine {
	out := make([]Medicine, 0, len(v.state.medicines))
	for _, m := range v.state.medicines {
		out = append(out, cloneMedicine(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindBatch retrieves a batch by id from the snapshot.
func (v transactionView) FindBatch(id string) (Batch, bool) {
	b, ok := v.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return cloneBatch(b), true
}

// ListBatches returns all batches ordered by id.
func (v transactionView) ListBatches() []Batch {
	out := make([]Batch, 0, len(v.state.batches))
	for _, b := range v.state.batches {
		out = append(out, cloneBatch(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MedicineBatches returns the medicine's batches in creation order.
func (v transactionView) MedicineBatches(medicineID string) []Batch {
	ids := v.state.medicineBatches[medicineID]
	out := make([]Batch, 0, len(ids))
	for _, id := range ids {
		if b, ok := v.state.batches[id]; ok {
			out = append(out, cloneBatch(b))
		}
	}
	return out
}

// Balance returns the holder's live balance for the medicine.
func (v transactionView) Balance(holder, medicineID string) int64 {
	return v.state.balances[holder][medicineID]
}

// Holders returns the append-only ever-holder list in insertion order.
func (v transactionView) Holders(medicineID string) []HolderRef {
	return append([]HolderRef(nil), v.state.holderIndex[medicineID]...)
}

// HolderMedicines returns the medicines the holder currently stocks,
// ordered by first acquisition.
func (v transactionView) HolderMedicines(holder string) []string {
	return append([]string(nil), v.state.holderMedicines[holder]...)
}

// MedicineHistory returns the full per-medicine event log in append order.
func (v transactionView) MedicineHistory(medicineID string) []SupplyChainEvent {
	return append([]SupplyChainEvent(nil), v.state.medicineEvents[medicineID]...)
}

// BatchHistory returns the full per-batch event log in append order.
func (v transactionView) BatchHistory(batchID string) []SupplyChainEvent {
	return append([]SupplyChainEvent(nil), v.state.batchEvents[batchID]...)
}

// DispensedTotal returns the cumulative quantity dispensed for the medicine.
func (v transactionView) DispensedTotal(medicineID string) int64 {
	return v.state.dispensed[medicineID]
}

// Read helpers over committed state --------------------------------------

// GetMedicine retrieves a medicine by id from committed state.
func (s *Store) GetMedicine(id string) (Medicine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.medicines[id]
	if !ok {
		return Medicine{}, false
	}
	return cloneMedicine(m), true
}

// GetBatch retrieves a batch by id from committed state.
func (s *Store) GetBatch(id string) (Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.batches[id]
	if !ok {
		return Batch{}, false
	}
	return cloneBatch(b), true
}

// ListMedicines returns all medicines from committed state.
func (s *Store) ListMedicines() []Medicine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListMedicines()
}

// ListBatches returns all batches from committed state.
func (s *Store) ListBatches() []Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListBatches()
}

// Balance returns a holder's committed balance for a medicine.
func (s *Store) Balance(holder, medicineID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[holder][medicineID]
}

// Holders returns the committed ever-holder list for a medicine.
func (s *Store) Holders(medicineID string) []HolderRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HolderRef(nil), s.state.holderIndex[medicineID]...)
}

// HolderMedicines returns the medicines a holder currently stocks.
func (s *Store) HolderMedicines(holder string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.holderMedicines[holder]...)
}

// MedicineHistory returns the committed per-medicine event log.
func (s *Store) MedicineHistory(medicineID string) []SupplyChainEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SupplyChainEvent(nil), s.state.medicineEvents[medicineID]...)
}

// BatchHistory returns the committed per-batch event log.
func (s *Store) BatchHistory(batchID string) []SupplyChainEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SupplyChainEvent(nil), s.state.batchEvents[batchID]...)
}

// DispensedTotal returns the committed cumulative dispensed quantity.
func (s *Store) DispensedTotal(medicineID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.dispensed[medicineID]
}

package memory

import "pharmxchain/pkg/domain"

// Snapshot is the serializable form of the full ledger state, exported for
// durable backends that persist JSON buckets after each commit. The holder
// membership set is derived from HolderIndex on import and is not persisted.
type Snapshot struct {
	Medicines       map[string]domain.Medicine           `json:"medicines"`
	Batches         map[string]domain.Batch              `json:"batches"`
	MedicineBatches map[string][]string                  `json:"medicine_batches"`
	Balances        map[string]map[string]int64          `json:"balances"`
	HolderIndex     map[string][]domain.HolderRef        `json:"holder_index"`
	HolderMedicines map[string][]string                  `json:"holder_medicines"`
	MedicineEvents  map[string][]domain.SupplyChainEvent `json:"medicine_events"`
	BatchEvents     map[string][]domain.SupplyChainEvent `json:"batch_events"`
	Dispensed       map[string]int64                     `json:"dispensed"`
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}

func snapshotFromState(st memoryState) Snapshot {
	cloned := st.clone()
	return Snapshot{
		Medicines:       cloned.medicines,
		Batches:         cloned.batches,
		MedicineBatches: cloned.medicineBatches,
		Balances:        cloned.balances,
		HolderIndex:     cloned.holderIndex,
		HolderMedicines: cloned.holderMedicines,
		MedicineEvents:  cloned.medicineEvents,
		BatchEvents:     cloned.batchEvents,
		Dispensed:       cloned.dispensed,
	}
}

func stateFromSnapshot(snapshot Snapshot) memoryState {
	st := newMemoryState()
	for k, v := range snapshot.Medicines {
		st.medicines[k] = cloneMedicine(v)
	}
	for k, v := range snapshot.Batches {
		st.batches[k] = cloneBatch(v)
	}
	for k, v := range snapshot.MedicineBatches {
		st.medicineBatches[k] = append([]string(nil), v...)
	}
	for holder, meds := range snapshot.Balances {
		inner := make(map[string]int64, len(meds))
		for med, qty := range meds {
			inner[med] = qty
		}
		st.balances[holder] = inner
	}
	for k, v := range snapshot.HolderIndex {
		st.holderIndex[k] = append([]domain.HolderRef(nil), v...)
		seen := make(map[string]bool, len(v))
		for _, ref := range v {
			seen[ref.Holder] = true
		}
		st.holderSeen[k] = seen
	}
	for k, v := range snapshot.HolderMedicines {
		st.holderMedicines[k] = append([]string(nil), v...)
	}
	for k, v := range snapshot.MedicineEvents {
		st.medicineEvents[k] = append([]domain.SupplyChainEvent(nil), v...)
	}
	for k, v := range snapshot.BatchEvents {
		st.batchEvents[k] = append([]domain.SupplyChainEvent(nil), v...)
	}
	for k, v := range snapshot.Dispensed {
		st.dispensed[k] = v
	}
	return st
}

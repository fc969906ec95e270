// Package sqlite provides an embedded SQLite-backed persistent store. It
// reuses the in-memory store for transactional semantics and snapshots the
// full ledger state to a single table of JSON buckets after every commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pharmxchain/internal/infra/persistence/memory"
	"pharmxchain/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory ledger state to a SQLite file as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store and
// hydrates the in-memory state from any existing snapshot.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "pharmxchain.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

const (
	bucketMedicines       = "medicines"
	bucketBatches         = "batches"
	bucketMedicineBatches = "medicine_batches"
	bucketBalances        = "balances"
	bucketHolderIndex     = "holder_index"
	bucketHolderMedicines = "holder_medicines"
	bucketMedicineEvents  = "medicine_events"
	bucketBatchEvents     = "batch_events"
	bucketDispensed       = "dispensed"
)

var buckets = []string{
	bucketMedicines,
	bucketBatches,
	bucketMedicineBatches,
	bucketBalances,
	bucketHolderIndex,
	bucketHolderMedicines,
	bucketMedicineEvents,
	bucketBatchEvents,
	bucketDispensed,
}

func bucketTargets(snapshot *memory.Snapshot) map[string]any {
	return map[string]any{
		bucketMedicines:       &snapshot.Medicines,
		bucketBatches:         &snapshot.Batches,
		bucketMedicineBatches: &snapshot.MedicineBatches,
		bucketBalances:        &snapshot.Balances,
		bucketHolderIndex:     &snapshot.HolderIndex,
		bucketHolderMedicines: &snapshot.HolderMedicines,
		bucketMedicineEvents:  &snapshot.MedicineEvents,
		bucketBatchEvents:     &snapshot.BatchEvents,
		bucketDispensed:       &snapshot.Dispensed,
	}
}

func bucketSources(snapshot memory.Snapshot) map[string]any {
	return map[string]any{
		bucketMedicines:       snapshot.Medicines,
		bucketBatches:         snapshot.Batches,
		bucketMedicineBatches: snapshot.MedicineBatches,
		bucketBalances:        snapshot.Balances,
		bucketHolderIndex:     snapshot.HolderIndex,
		bucketHolderMedicines: snapshot.HolderMedicines,
		bucketMedicineEvents:  snapshot.MedicineEvents,
		bucketBatchEvents:     snapshot.BatchEvents,
		bucketDispensed:       snapshot.Dispensed,
	}
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	targets := bucketTargets(&snapshot)
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		target, ok := targets[bucket]
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		loaded = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded {
		s.ImportState(snapshot)
	}
	return nil
}

// RunInTransaction applies fn within the in-memory transactional scope, then
// snapshots to SQLite when the commit succeeded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	sources := bucketSources(snapshot)
	for _, bucket := range buckets {
		data, err := json.Marshal(sources[bucket])
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

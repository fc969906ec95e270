package core

import (
	"fmt"

	"pharmxchain/internal/infra/persistence/memory"
	"pharmxchain/internal/infra/persistence/postgres"
	"pharmxchain/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore constructs the selected backend. sqlitePath applies to
// the sqlite driver (empty means the driver default), dsn to postgres.
func OpenPersistentStore(driver StorageDriver, sqlitePath, dsn string, engine *RulesEngine) (PersistentStore, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(sqlitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

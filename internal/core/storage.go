package core

import (
	"fmt"
	"os"

	"cliniccore/internal/infra/persistence/jsonfile"
	"cliniccore/internal/infra/persistence/memory"
	"cliniccore/internal/infra/persistence/postgres"
	"cliniccore/internal/infra/persistence/sqlite"
	"cliniccore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageJSONFile StorageDriver = "jsonfile" // patients.json / doctors.json on disk
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// NewMemoryStore constructs the in-memory store used by tests and ephemeral
// deployments.
func NewMemoryStore(engine *domain.RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to jsonfile when unset.
//
//	CLINICCORE_STORAGE_DRIVER: memory|jsonfile|sqlite|postgres (default jsonfile)
//	CLINICCORE_DATA_DIR: directory for the json files (default ./clinicdata)
//	CLINICCORE_SQLITE_PATH: path to sqlite file (default ./cliniccore.db)
//	CLINICCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *domain.RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("CLINICCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageJSONFile)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageJSONFile:
		dir := os.Getenv("CLINICCORE_DATA_DIR")
		return jsonfile.NewStore(dir, engine)
	case StorageSQLite:
		path := os.Getenv("CLINICCORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("CLINICCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

package core

import (
	"fmt"
	"os"
	"strings"

	"mescore/internal/infra/persistence/memory"
	"mescore/internal/infra/persistence/postgres"
	"mescore/internal/infra/persistence/sqlite"
	"mescore/pkg/domain"
)

// StorageDriver selects the persistence backend.
type StorageDriver string

// Supported storage drivers.
const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverSQLite   StorageDriver = "sqlite"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Environment variables controlling storage selection.
const (
	EnvStorageDriver = "MESCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "MESCORE_SQLITE_PATH"
	EnvPostgresDSN   = "MESCORE_POSTGRES_DSN"
)

// OpenPersistentStoreFromEnv builds a persistent store from environment
// configuration. SQLite is the default driver.
func OpenPersistentStoreFromEnv(engine *domain.RulesEngine) (domain.PersistentStore, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver))))
	if driver == "" {
		driver = StorageDriverSQLite
	}
	return OpenPersistentStore(driver, engine)
}

// OpenPersistentStore builds a persistent store for the given driver,
// locating the backend through the environment.
func OpenPersistentStore(driver StorageDriver, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch driver {
	case StorageDriverSQLite:
		return OpenPersistentStoreAt(driver, os.Getenv(EnvSQLitePath), engine)
	case StorageDriverPostgres:
		return OpenPersistentStoreAt(driver, os.Getenv(EnvPostgresDSN), engine)
	default:
		return OpenPersistentStoreAt(driver, "", engine)
	}
}

// OpenPersistentStoreAt builds a persistent store for the given driver at
// an explicit location: a file path for sqlite, a DSN for postgres. The
// memory driver ignores the location.
func OpenPersistentStoreAt(driver StorageDriver, location string, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch driver {
	case StorageDriverMemory:
		return memory.NewStore(engine), nil
	case StorageDriverSQLite:
		return sqlite.NewStore(location, engine)
	case StorageDriverPostgres:
		return postgres.NewStore(location, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

package core

import (
	"path/filepath"
	"testing"

	"mescore/internal/infra/persistence/memory"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(StorageDriverMemory, DefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore("etcd", nil); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestOpenPersistentStoreFromEnvDefaultsToSQLite(t *testing.T) {
	t.Setenv(EnvStorageDriver, "")
	t.Setenv(EnvSQLitePath, filepath.Join(t.TempDir(), "state.db"))

	store, err := OpenPersistentStoreFromEnv(DefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); ok {
		t.Fatalf("expected sqlite-backed store, got bare memory store")
	}
}

func TestOpenPersistentStoreFromEnvHonorsDriver(t *testing.T) {
	t.Setenv(EnvStorageDriver, "memory")
	store, err := OpenPersistentStoreFromEnv(nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

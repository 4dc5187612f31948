// Package sqlite provides a SQLite-backed persistent store. It reuses the
// in-memory store for transactional semantics and snapshots the full state
// into a single table after every successful commit.
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

	"mescore/internal/infra/persistence/memory"
	"mescore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "mescore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
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
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var buckets = []string{
	"orders",
	"routings",
	"workstations",
	"schedule_items",
	"ncrs",
	"kanban_cards",
	"maintenance_logs",
	"material_stocks",
	"containers",
	"quality_checks",
	"spc_series",
	"order_state_changes",
}

func bucketTargets(snapshot *memory.Snapshot) map[string]any {
	return map[string]any{
		"orders":              &snapshot.Orders,
		"routings":            &snapshot.Routings,
		"workstations":        &snapshot.Workstations,
		"schedule_items":      &snapshot.Items,
		"ncrs":                &snapshot.NCRs,
		"kanban_cards":        &snapshot.Kanbans,
		"maintenance_logs":    &snapshot.Maintenance,
		"material_stocks":     &snapshot.Stocks,
		"containers":          &snapshot.Containers,
		"quality_checks":      &snapshot.Checks,
		"spc_series":          &snapshot.SPC,
		"order_state_changes": &snapshot.OrderAudit,
	}
}

func bucketPayload(snapshot memory.Snapshot, bucket string) (any, error) {
	switch bucket {
	case "orders":
		return snapshot.Orders, nil
	case "routings":
		return snapshot.Routings, nil
	case "workstations":
		return snapshot.Workstations, nil
	case "schedule_items":
		return snapshot.Items, nil
	case "ncrs":
		return snapshot.NCRs, nil
	case "kanban_cards":
		return snapshot.Kanbans, nil
	case "maintenance_logs":
		return snapshot.Maintenance, nil
	case "material_stocks":
		return snapshot.Stocks, nil
	case "containers":
		return snapshot.Containers, nil
	case "quality_checks":
		return snapshot.Checks, nil
	case "spc_series":
		return snapshot.SPC, nil
	case "order_state_changes":
		return snapshot.OrderAudit, nil
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
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

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		payload, err := bucketPayload(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		data, err := json.Marshal(payload)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// RunInTransaction applies the provided function within a transaction, then
// snapshots state to SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// RestoreState replaces the in-memory state with the snapshot and writes it
// through to SQLite.
func (s *Store) RestoreState(_ context.Context, snapshot memory.Snapshot) error {
	s.ImportState(snapshot)
	return s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

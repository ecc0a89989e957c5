// Package sqlite persists clinic state in a SQLite database. Transactions run
// against the in-memory store; each committed transaction serializes the full
// state into per-entity buckets of a snapshot table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"cliniccore/internal/infra/persistence/memory"
	"cliniccore/pkg/domain"

	_ "modernc.org/sqlite"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Snapshot aliases the memory store snapshot this driver serializes.
	Snapshot = memory.Snapshot
)

const (
	bucketPatients = "patients"
	bucketDoctors  = "doctors"
)

// Store persists state snapshots in SQLite while reusing the in-memory
// implementation for transactions.
type Store struct {
	*memory.Store
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens (creating if necessary) a SQLite-backed store at path and
// hydrates state from it.
func NewStore(path string, engine *RulesEngine) (*Store, error) {
	if path == "" {
		path = "cliniccore.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite rejects concurrent writers on a single file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for maintenance tooling and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) load() error {
	snapshot := Snapshot{
		Patients: map[string]domain.Patient{},
		Doctors:  map[string]domain.Doctor{},
	}
	if err := loadBucket(s.db, bucketPatients, &snapshot.Patients); err != nil {
		return err
	}
	if err := loadBucket(s.db, bucketDoctors, &snapshot.Doctors); err != nil {
		return err
	}
	s.ImportState(snapshot)
	return nil
}

func loadBucket[T any](db *sql.DB, bucket string, out *map[string]T) error {
	var payload []byte
	err := db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, bucket).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load bucket %s: %w", bucket, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode bucket %s: %w", bucket, err)
	}
	return nil
}

// RunInTransaction applies fn in memory, then snapshots to SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
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

	patients, err := json.Marshal(snapshot.Patients)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	doctors, err := json.Marshal(snapshot.Doctors)
	if err != nil {
		return fmt.Errorf("encode doctors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	const upsert = `INSERT INTO state (bucket, payload) VALUES (?, ?)
		ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`
	if _, err := tx.ExecContext(ctx, upsert, bucketPatients, patients); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write patients: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, bucketDoctors, doctors); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write doctors: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

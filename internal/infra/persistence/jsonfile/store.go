// Package jsonfile persists the clinic state as per-entity JSON files
// (patients.json / doctors.json), the storage format of record. Each
// successful transaction snapshots the full state; the previous good file is
// rotated to a backup before every write so a failed write can never destroy
// the last good state.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	blobcore "cliniccore/internal/infra/blob/core"
	"cliniccore/internal/infra/persistence/memory"
	"cliniccore/pkg/domain"
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
	patientsFile = "patients.json"
	doctorsFile  = "doctors.json"
	backupSuffix = ".bak"
)

// Store persists state to JSON files while reusing the in-memory
// implementation for transactions.
type Store struct {
	*memory.Store
	mu      sync.Mutex
	dir     string
	archive blobcore.Store
	nowFn   func() time.Time
}

// Option configures optional store collaborators.
type Option func(*Store)

// WithArchive mirrors every persisted snapshot into the blob store under a
// timestamped key. Archiving is best-effort: a failed mirror never fails the
// transaction that triggered it.
func WithArchive(archive blobcore.Store) Option {
	return func(s *Store) { s.archive = archive }
}

// NewStore opens a JSON-file-backed store rooted at dir (default
// ./clinicdata), hydrating state from the existing files. A missing, empty,
// or corrupt file falls back to its backup, and failing that is treated as
// an empty store; load never surfaces a parse failure as fatal.
func NewStore(dir string, engine *RulesEngine, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = "./clinicdata"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		Store: memory.NewStore(engine),
		dir:   dir,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	snapshot := Snapshot{}
	loadBucket(filepath.Join(dir, patientsFile), &snapshot.Patients)
	loadBucket(filepath.Join(dir, doctorsFile), &snapshot.Doctors)
	s.ImportState(snapshot)
	return s, nil
}

// Dir returns the directory holding the JSON files.
func (s *Store) Dir() string { return s.dir }

// loadBucket decodes path into out, falling back to the backup file and
// finally to an empty mapping. Corrupt stores are recovered, not fatal.
func loadBucket[T any](path string, out *map[string]T) {
	if decodeFile(path, out) {
		return
	}
	if decodeFile(path+backupSuffix, out) {
		return
	}
	*out = map[string]T{}
}

func decodeFile[T any](path string, out *map[string]T) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	decoded := map[string]T{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return false
	}
	*out = decoded
	return true
}

// RunInTransaction applies fn in memory, then snapshots to disk if successful.
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

	patients, err := json.MarshalIndent(snapshot.Patients, "", "    ")
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	doctors, err := json.MarshalIndent(snapshot.Doctors, "", "    ")
	if err != nil {
		return fmt.Errorf("encode doctors: %w", err)
	}
	if err := writeWithBackup(filepath.Join(s.dir, patientsFile), patients); err != nil {
		return fmt.Errorf("write patients: %w", err)
	}
	if err := writeWithBackup(filepath.Join(s.dir, doctorsFile), doctors); err != nil {
		return fmt.Errorf("write doctors: %w", err)
	}

	if s.archive != nil {
		// Best-effort mirror; the local files remain the source of truth.
		prefix := fmt.Sprintf("snapshots/%s", s.nowFn().Format("20060102T150405.000000000Z"))
		_, _ = s.archive.Put(ctx, prefix+"/"+patientsFile, bytes.NewReader(patients), blobcore.PutOptions{ContentType: "application/json"})
		_, _ = s.archive.Put(ctx, prefix+"/"+doctorsFile, bytes.NewReader(doctors), blobcore.PutOptions{ContentType: "application/json"})
	}
	return nil
}

// writeWithBackup rotates the current file to its backup, then writes the new
// snapshot via temp file + rename.
func writeWithBackup(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+backupSuffix); err != nil {
			return fmt.Errorf("rotate backup: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

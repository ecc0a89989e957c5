package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"cliniccore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var created domain.Patient
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var e error
		if created, e = tx.CreatePatient(domain.Patient{Name: "Asha", Age: 30, Gender: "F"}); e != nil {
			return e
		}
		_, e = tx.CreateDoctor(domain.Doctor{Name: "Dr. Rao", Specialization: "Cardiology"})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	patient, ok := reloaded.GetPatient(created.ID)
	if !ok || patient.Name != "Asha" {
		t.Fatalf("expected patient to survive reload, got %+v (%v)", patient, ok)
	}
	if got := len(reloaded.ListDoctors()); got != 1 {
		t.Fatalf("expected 1 doctor after reload, got %d", got)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='state'").Scan(&name); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if name != "state" {
		t.Fatalf("expected state table, got %s", name)
	}
}

func TestSQLiteStoreOverwritesBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, name := range []string{"First", "Second"} {
		if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, e := tx.CreatePatient(domain.Patient{Name: name, Age: 30, Gender: "F"})
			return e
		}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	var rows int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM state").Scan(&rows); err != nil {
		t.Fatalf("count state rows: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected one row per bucket, got %d", rows)
	}
}

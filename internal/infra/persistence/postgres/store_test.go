package postgres

import (
	"context"
	"os"
	"testing"

	"cliniccore/pkg/domain"
)

// Integration test: requires a reachable PostgreSQL. Gated on the same DSN
// variable the driver factory reads.
func TestPostgresStorePersistAndReload(t *testing.T) {
	dsn := os.Getenv("CLINICCORE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CLINICCORE_POSTGRES_DSN not set")
	}
	store, err := NewStore(dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open postgres store: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.DB().Exec("DROP TABLE IF EXISTS state")
		_ = store.Close()
	})

	var created domain.Patient
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var e error
		created, e = tx.CreatePatient(domain.Patient{Name: "Asha", Age: 30, Gender: "F"})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	reloaded, err := NewStore(dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if _, ok := reloaded.GetPatient(created.ID); !ok {
		t.Fatalf("expected patient to survive reload")
	}
}

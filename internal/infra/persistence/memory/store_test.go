package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cliniccore/pkg/domain"
)

func TestStoreGeneratesPrefixedIDs(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	var patient Patient
	var doctor Doctor
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		if patient, err = tx.CreatePatient(Patient{Name: "Asha", Age: 30, Gender: "F"}); err != nil {
			return err
		}
		doctor, err = tx.CreateDoctor(Doctor{Name: "Dr. Rao", Specialization: "Cardiology"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(patient.ID, "PAT-") || len(patient.ID) != 9 {
		t.Fatalf("unexpected patient id %q", patient.ID)
	}
	if !strings.HasPrefix(doctor.ID, "DOC-") || len(doctor.ID) != 9 {
		t.Fatalf("unexpected doctor id %q", doctor.ID)
	}
	if patient.CreatedAt.IsZero() || doctor.CreatedAt.IsZero() {
		t.Fatalf("expected created timestamps to be stamped")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	boom := errors.New("boom")
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreatePatient(Patient{Name: "Ghost", Age: 40, Gender: "M"}); err != nil {
			return err
		}
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if got := len(store.ListPatients()); got != 0 {
		t.Fatalf("expected rollback, found %d patients", got)
	}
}

type blockEverything struct{}

func (blockEverything) Name() string { return "block_everything" }

func (blockEverything) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block_everything", Severity: domain.SeverityBlock}}}, nil
}

func TestStoreBlocksCommitOnRuleViolation(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockEverything{})
	store := NewStore(engine)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, e := tx.CreatePatient(Patient{Name: "Blocked", Age: 20, Gender: "F"})
		return e
	})
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if got := len(store.ListPatients()); got != 0 {
		t.Fatalf("blocked transaction must not commit, found %d patients", got)
	}
}

func TestUpdateMissingEntityFails(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, e := tx.UpdatePatient("PAT-NOPE", func(*Patient) error { return nil })
		return e
	}); err == nil {
		t.Fatalf("expected error updating missing patient")
	}
}

func TestReturnedEntitiesAreClones(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	var id string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		p, err := tx.CreatePatient(Patient{Name: "Asha", Age: 30, Gender: "F", Symptoms: []string{"fever"}})
		id = p.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok := store.GetPatient(id)
	if !ok {
		t.Fatalf("patient not found")
	}
	got.Symptoms[0] = "mutated"
	got.Name = "mutated"

	again, _ := store.GetPatient(id)
	if again.Symptoms[0] != "fever" || again.Name != "Asha" {
		t.Fatalf("store state mutated through returned copy: %+v", again)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreatePatient(Patient{Name: "Asha", Age: 30, Gender: "F"}); err != nil {
			return err
		}
		_, err := tx.CreateDoctor(Doctor{Name: "Dr. Rao", Specialization: "Cardiology"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fresh := NewStore(domain.NewRulesEngine())
	fresh.ImportState(store.ExportState())
	if got := len(fresh.ListPatients()); got != 1 {
		t.Fatalf("expected 1 patient after import, got %d", got)
	}
	if got := len(fresh.ListDoctors()); got != 1 {
		t.Fatalf("expected 1 doctor after import, got %d", got)
	}
}

func TestMigrateSnapshotBackfillsDerivedFields(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.ImportState(Snapshot{
		Patients: map[string]Patient{
			"PAT-LEGCY": {
				Name:    "Legacy",
				Age:     50,
				Gender:  "M",
				History: []domain.TreatmentEntry{{Date: "2026-01-01", Note: "day 1", Cost: 300}},
			},
		},
	})
	p, ok := store.GetPatient("PAT-LEGCY")
	if !ok {
		t.Fatalf("expected imported patient")
	}
	if p.ID != "PAT-LEGCY" {
		t.Fatalf("expected id backfilled from key, got %q", p.ID)
	}
	if p.Status != domain.StatusRegistered {
		t.Fatalf("expected default status registered, got %s", p.Status)
	}
	if p.TreatmentTotal != 300 {
		t.Fatalf("expected treatment total rebuilt from history, got %v", p.TreatmentTotal)
	}
}

func TestSetNowFuncControlsTimestamps(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	var created Patient
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreatePatient(Patient{Name: "Asha", Age: 30, Gender: "F"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.CreatedAt.Equal(fixed) || !created.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected fixed timestamps, got %v / %v", created.CreatedAt, created.UpdatedAt)
	}
}

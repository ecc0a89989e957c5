package core

import (
	"context"
	"errors"
	"testing"

	"cliniccore/pkg/domain"
)

func patientChange(before, after domain.Patient) domain.Change {
	return domain.Change{
		Entity: domain.EntityPatient,
		Action: domain.ActionUpdate,
		Before: before,
		After:  after,
	}
}

func patientWithStatus(id string, status domain.PatientStatus) domain.Patient {
	p := domain.Patient{Status: status}
	p.ID = id
	return p
}

func TestStatusTransitionRuleAllowsForwardMoves(t *testing.T) {
	rule := StatusTransitionRule()
	changes := []domain.Change{
		patientChange(patientWithStatus("PAT-11111", domain.StatusRegistered), patientWithStatus("PAT-11111", domain.StatusInpatient)),
		patientChange(patientWithStatus("PAT-22222", domain.StatusInpatient), patientWithStatus("PAT-22222", domain.StatusDischarged)),
		patientChange(patientWithStatus("PAT-33333", domain.StatusOutpatient), patientWithStatus("PAT-33333", domain.StatusOutpatient)),
	}
	res, err := rule.Evaluate(context.Background(), nil, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res.Violations)
	}
}

func TestStatusTransitionRuleBlocksBackwardMoves(t *testing.T) {
	rule := StatusTransitionRule()
	cases := []struct {
		name   string
		before domain.PatientStatus
		after  domain.PatientStatus
	}{
		{"discharged is terminal", domain.StatusDischarged, domain.StatusInpatient},
		{"inpatient cannot revert", domain.StatusInpatient, domain.StatusRegistered},
		{"outpatient cannot become inpatient", domain.StatusOutpatient, domain.StatusInpatient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			changes := []domain.Change{patientChange(patientWithStatus("PAT-11111", tc.before), patientWithStatus("PAT-11111", tc.after))}
			res, err := rule.Evaluate(context.Background(), nil, changes)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if !res.HasBlocking() {
				t.Fatalf("expected blocking violation for %s -> %s", tc.before, tc.after)
			}
		})
	}
}

func TestStatusTransitionRuleBlocksUnknownStatus(t *testing.T) {
	rule := StatusTransitionRule()
	changes := []domain.Change{patientChange(patientWithStatus("PAT-11111", domain.StatusRegistered), patientWithStatus("PAT-11111", "vanished"))}
	res, err := rule.Evaluate(context.Background(), nil, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation for unknown status")
	}
}

type staticView struct {
	doctors []domain.Doctor
}

func (v staticView) ListPatients() []domain.Patient           { return nil }
func (v staticView) ListDoctors() []domain.Doctor             { return v.doctors }
func (v staticView) FindPatient(string) (domain.Patient, bool) { return domain.Patient{}, false }

func (v staticView) FindDoctor(id string) (domain.Doctor, bool) {
	for _, d := range v.doctors {
		if d.ID == id {
			return d, true
		}
	}
	return domain.Doctor{}, false
}

func TestExclusiveAssignmentRuleBlocksDoubleRoster(t *testing.T) {
	rule := ExclusiveAssignmentRule()
	a := doctor("DOC-AAAAA", "Cardiology", 0, false)
	a.Patients = []string{"PAT-11111"}
	b := doctor("DOC-BBBBB", "Neurology", 0, false)
	b.Patients = []string{"PAT-11111"}

	changes := []domain.Change{{Entity: domain.EntityDoctor, Action: domain.ActionUpdate, After: a}}
	res, err := rule.Evaluate(context.Background(), staticView{doctors: []domain.Doctor{a, b}}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation for double roster")
	}
	if res.Violations[0].EntityID != "PAT-11111" {
		t.Fatalf("expected violation on the patient, got %+v", res.Violations[0])
	}
}

func patientCreateChange(p domain.Patient) domain.Change {
	return domain.Change{
		Entity: domain.EntityPatient,
		Action: domain.ActionCreate,
		After:  p,
	}
}

func TestExclusiveAssignmentRuleBlocksDanglingCreateLink(t *testing.T) {
	rule := ExclusiveAssignmentRule()
	rostered := doctor("DOC-AAAAA", "Cardiology", 0, false)

	cases := []struct {
		name     string
		doctorID string
	}{
		{"unknown doctor", "DOC-ZZZZZ"},
		{"doctor does not roster the patient", rostered.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := patientWithStatus("PAT-11111", domain.StatusRegistered)
			p.AssignedDoctorID = &tc.doctorID
			res, err := rule.Evaluate(context.Background(), staticView{doctors: []domain.Doctor{rostered}}, []domain.Change{patientCreateChange(p)})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if !res.HasBlocking() {
				t.Fatalf("expected blocking violation for dangling assignment")
			}
			if res.Violations[0].EntityID != "PAT-11111" {
				t.Fatalf("expected violation on the patient, got %+v", res.Violations[0])
			}
		})
	}
}

func TestExclusiveAssignmentRuleAllowsConsistentCreateLink(t *testing.T) {
	rule := ExclusiveAssignmentRule()
	d := doctor("DOC-AAAAA", "Cardiology", 0, false)
	d.Patients = []string{"PAT-11111"}

	p := patientWithStatus("PAT-11111", domain.StatusRegistered)
	p.AssignedDoctorID = &d.ID
	res, err := rule.Evaluate(context.Background(), staticView{doctors: []domain.Doctor{d}}, []domain.Change{patientCreateChange(p)})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected consistent create to pass, got %+v", res.Violations)
	}
}

func TestStoreBlocksPatientCreatedWithUnrosteredDoctor(t *testing.T) {
	store := NewMemoryStore(DefaultRulesEngine())

	var docID string
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDoctor(domain.Doctor{Name: "Dr. Meera Rao", Specialization: "Cardiology"})
		if err != nil {
			return err
		}
		docID = d.ID
		return nil
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreatePatient(domain.Patient{
			Name:             "Asha Pillai",
			Age:              54,
			Gender:           "F",
			Symptoms:         []string{"chest pain"},
			Status:           domain.StatusRegistered,
			AssignedDoctorID: &docID,
		})
		return err
	})
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected rule violation for unrostered assignment, got %v", err)
	}
	if !ruleErr.Result.HasBlocking() {
		t.Fatalf("expected blocking result, got %+v", ruleErr.Result)
	}

	if got := len(store.ListPatients()); got != 0 {
		t.Fatalf("blocked create must not commit, found %d patients", got)
	}
}

func TestExclusiveAssignmentRuleIgnoresPatientOnlyChanges(t *testing.T) {
	rule := ExclusiveAssignmentRule()
	a := doctor("DOC-AAAAA", "Cardiology", 0, false)
	a.Patients = []string{"PAT-11111"}
	b := doctor("DOC-BBBBB", "Neurology", 0, false)
	b.Patients = []string{"PAT-11111"}

	changes := []domain.Change{patientChange(domain.Patient{}, domain.Patient{})}
	res, err := rule.Evaluate(context.Background(), staticView{doctors: []domain.Doctor{a, b}}, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("rule must skip transactions that never touch a doctor")
	}
}

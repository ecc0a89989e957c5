package core

import (
	"context"
	"fmt"
	"sort"

	"cliniccore/pkg/domain"
)

// ExclusiveAssignmentRule blocks commits in which a patient id appears on
// more than one doctor's roster, and commits that create a patient whose
// assigned_doctor_id points at a doctor that does not roster the patient.
// Assignment is exclusive and bidirectional: reassignment must withdraw the
// patient from the previous roster in the same transaction, and a created
// patient's link must land on a doctor that holds it.
func ExclusiveAssignmentRule() domain.Rule {
	return exclusiveAssignmentRule{}
}

type exclusiveAssignmentRule struct{}

func (exclusiveAssignmentRule) Name() string { return "exclusive_assignment" }

func (exclusiveAssignmentRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touchesDoctor := false
	for _, change := range changes {
		if change.Entity == domain.EntityDoctor {
			touchesDoctor = true
			continue
		}
		if change.Entity != domain.EntityPatient || change.Action != domain.ActionCreate {
			continue
		}
		after, ok := change.After.(domain.Patient)
		if !ok || after.AssignedDoctorID == nil {
			continue
		}
		doctor, found := view.FindDoctor(*after.AssignedDoctorID)
		if !found || !doctor.HasPatient(after.ID) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "exclusive_assignment",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("patient %s created with assigned doctor %s that does not roster it", after.ID, *after.AssignedDoctorID),
				Entity:   domain.EntityPatient,
				EntityID: after.ID,
			})
		}
	}
	if !touchesDoctor {
		return res, nil
	}

	rosters := make(map[string][]string)
	for _, doctor := range view.ListDoctors() {
		for _, pid := range doctor.Patients {
			rosters[pid] = append(rosters[pid], doctor.ID)
		}
	}
	pids := make([]string, 0, len(rosters))
	for pid := range rosters {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	for _, pid := range pids {
		if holders := rosters[pid]; len(holders) > 1 {
			sort.Strings(holders)
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "exclusive_assignment",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("patient %s is rostered by multiple doctors %v", pid, holders),
				Entity:   domain.EntityPatient,
				EntityID: pid,
			})
		}
	}
	return res, nil
}

package core

import (
	"context"
	"fmt"

	"cliniccore/pkg/domain"
)

// StatusTransitionRule blocks illegal patient status transitions. The status
// machine is monotonic: registered moves to inpatient or outpatient, either
// of which ends in discharged, and discharged is terminal.
func StatusTransitionRule() domain.Rule {
	return statusTransitionRule{}
}

type statusTransitionRule struct{}

var validStatuses = toSet(
	string(domain.StatusRegistered),
	string(domain.StatusInpatient),
	string(domain.StatusOutpatient),
	string(domain.StatusDischarged),
)

// allowedTransitions maps a prior status to the statuses reachable from it.
// Same-state updates are always allowed.
var allowedTransitions = map[domain.PatientStatus]map[string]struct{}{
	domain.StatusRegistered: toSet(string(domain.StatusInpatient), string(domain.StatusOutpatient)),
	domain.StatusInpatient:  toSet(string(domain.StatusDischarged)),
	domain.StatusOutpatient: toSet(string(domain.StatusDischarged)),
	domain.StatusDischarged: {},
}

func (statusTransitionRule) Name() string { return "status_transition" }

func (statusTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityPatient {
			continue
		}
		after, ok := change.After.(domain.Patient)
		if !ok {
			continue
		}
		if _, valid := validStatuses[string(after.Status)]; !valid {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "status_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("patient %s is set to invalid status %s", after.ID, after.Status),
				Entity:   domain.EntityPatient,
				EntityID: after.ID,
			})
			continue
		}
		before, ok := change.Before.(domain.Patient)
		if !ok {
			continue
		}
		if after.Status == before.Status {
			continue
		}
		if _, allowed := allowedTransitions[before.Status][string(after.Status)]; !allowed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "status_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move patient %s from %s to %s", after.ID, before.Status, after.Status),
				Entity:   domain.EntityPatient,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

package core

import "cliniccore/pkg/domain"

type (
	EntityType         = domain.EntityType
	PatientStatus      = domain.PatientStatus
	Severity           = domain.Severity
	Base               = domain.Base
	Patient            = domain.Patient
	Doctor             = domain.Doctor
	TreatmentEntry     = domain.TreatmentEntry
	ClinicalNote       = domain.ClinicalNote
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityPatient = domain.EntityPatient
	EntityDoctor  = domain.EntityDoctor
)

const (
	StatusRegistered = domain.StatusRegistered
	StatusInpatient  = domain.StatusInpatient
	StatusOutpatient = domain.StatusOutpatient
	StatusDischarged = domain.StatusDischarged
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)

// NewRulesEngine re-exports the domain rules engine constructor.
func NewRulesEngine() *domain.RulesEngine { return domain.NewRulesEngine() }

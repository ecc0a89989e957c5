// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by cliniccore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPatient identifies a patient record.
	EntityPatient EntityType = "patient"
	// EntityDoctor identifies a doctor record.
	EntityDoctor EntityType = "doctor"
)

// PatientStatus represents the canonical patient lifecycle states.
type PatientStatus string

// Canonical patient statuses. Transitions are monotonic: registered moves to
// inpatient or outpatient, both of which end in discharged.
const (
	// StatusRegistered indicates a patient that has been registered but not triaged.
	StatusRegistered PatientStatus = "registered"
	// StatusInpatient indicates an admitted patient whose bill accrues from treatment history.
	StatusInpatient PatientStatus = "inpatient"
	// StatusOutpatient indicates a non-admitted patient billed a flat consultation fee.
	StatusOutpatient PatientStatus = "outpatient"
	// StatusDischarged is the terminal state. Patients are never deleted, only discharged.
	StatusDischarged PatientStatus = "discharged"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// DateLayout is the calendar-day format used for admission, discharge, and
// history entry dates.
const DateLayout = "2006-01-02"

// Base carries the identity and bookkeeping fields shared by all entities.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TreatmentEntry is a single dated line in a patient's treatment history.
// The sum of Cost across entries is the authoritative inpatient bill.
type TreatmentEntry struct {
	Date string  `json:"date"`
	Note string  `json:"note"`
	Cost float64 `json:"cost"`
}

// Patient represents an individual tracked through the clinic workflow.
type Patient struct {
	Base
	Name             string           `json:"name"`
	Age              int              `json:"age"`
	Gender           string           `json:"gender"`
	Symptoms         []string         `json:"symptoms"`
	AssignedDoctorID *string          `json:"assigned_doctor_id"`
	Status           PatientStatus    `json:"status"`
	History          []TreatmentEntry `json:"history"`
	AdmittedAt       *string          `json:"admitted_at"`
	DischargedAt     *string          `json:"discharged_at"`
	TreatmentTotal   float64          `json:"treatment_total"`
	BillAmount       float64          `json:"bill_amount"`
}

// ClinicalNote is a dated entry in a doctor's per-patient log. Treatment and
// Cost are optional; they mirror what the doctor recorded, not the bill.
type ClinicalNote struct {
	Date      string  `json:"date"`
	Note      string  `json:"note"`
	Treatment string  `json:"treatment,omitempty"`
	Cost      float64 `json:"cost,omitempty"`
}

// Doctor represents a clinician and their current patient roster.
type Doctor struct {
	Base
	Name           string                    `json:"name"`
	Specialization string                    `json:"specialization"`
	Patients       []string                  `json:"patients"`
	Notes          map[string][]ClinicalNote `json:"notes"`
	OnLeave        bool                      `json:"on_leave"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation or a non-fatal operational
// outcome (log severity).
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

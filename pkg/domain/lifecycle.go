package domain

import (
	"strings"
	"time"
)

// OutpatientFee is the flat consultation fee billed to patients handled on
// the outpatient path. Inpatient bills are reconciled against itemized
// treatment history instead.
const OutpatientFee = 500

// criticalSymptoms lists keywords that force admission regardless of the
// stated condition. Matching is bidirectional substring so that e.g.
// "bleeding" matches "severe bleeding".
var criticalSymptoms = []string{
	"abdominal pain",
	"severe abdominal pain",
	"abdominal bleeding",
	"chest pain",
	"difficulty breathing",
	"unconscious",
	"severe bleeding",
	"heart attack",
	"stroke",
	"severe allergic reaction",
	"severe burns",
}

// ShouldAdmit classifies a registration as inpatient-worthy. It returns true
// when the condition text equals "critical" case-insensitively, or when any
// symptom matches a critical keyword in either substring direction.
func ShouldAdmit(symptoms []string, condition string) bool {
	if strings.EqualFold(strings.TrimSpace(condition), "critical") {
		return true
	}
	for _, symptom := range symptoms {
		s := strings.ToLower(strings.TrimSpace(symptom))
		if s == "" {
			continue
		}
		for _, crit := range criticalSymptoms {
			if strings.Contains(s, crit) || strings.Contains(crit, s) {
				return true
			}
		}
	}
	return false
}

// Admit moves the patient onto the inpatient path and stamps the admission
// date. Calling it again only refreshes the date.
func (p *Patient) Admit(now time.Time) {
	date := now.Format(DateLayout)
	p.AdmittedAt = &date
	p.Status = StatusInpatient
}

// AddHistory appends a dated treatment entry and accrues its cost into the
// running total. This is the sole accumulator of billable cost: bill_amount
// always tracks the total after an entry is added.
func (p *Patient) AddHistory(now time.Time, note string, cost float64) {
	p.History = append(p.History, TreatmentEntry{
		Date: now.Format(DateLayout),
		Note: note,
		Cost: cost,
	})
	p.TreatmentTotal += cost
	p.BillAmount = p.TreatmentTotal
}

// SetOutpatient moves the patient onto the outpatient path with the flat
// consultation fee. The advice note is recorded in history at zero cost so
// the fee is not double-counted against history.
func (p *Patient) SetOutpatient(now time.Time, note string) {
	p.Status = StatusOutpatient
	p.AddHistory(now, note, 0)
	p.BillAmount = OutpatientFee
}

// Discharge stamps the discharge date and settles the bill. A patient that
// was ever admitted is billed the sum of history entry costs, overriding any
// supplied bill; a pure outpatient keeps the supplied bill when present,
// otherwise whatever was already accrued (the flat fee).
func (p *Patient) Discharge(now time.Time, bill *float64) {
	date := now.Format(DateLayout)
	p.DischargedAt = &date
	if p.Status == StatusInpatient || p.AdmittedAt != nil {
		var total float64
		for _, entry := range p.History {
			total += entry.Cost
		}
		p.BillAmount = total
	} else if bill != nil {
		p.BillAmount = *bill
	}
	p.Status = StatusDischarged
}

// AssignPatient adds the patient to the doctor's roster and links the
// patient back by doctor id. Assignment is idempotent per doctor.
func (d *Doctor) AssignPatient(p *Patient) {
	if !d.HasPatient(p.ID) {
		d.Patients = append(d.Patients, p.ID)
	}
	id := d.ID
	p.AssignedDoctorID = &id
}

// HasPatient reports whether the patient id is on this doctor's roster.
func (d *Doctor) HasPatient(patientID string) bool {
	for _, id := range d.Patients {
		if id == patientID {
			return true
		}
	}
	return false
}

// WithdrawPatient removes the patient id from the roster if present.
func (d *Doctor) WithdrawPatient(patientID string) {
	for i, id := range d.Patients {
		if id == patientID {
			d.Patients = append(d.Patients[:i], d.Patients[i+1:]...)
			return
		}
	}
}

// LogCondition appends a dated clinical note for the patient. It does not
// touch patient state; history updates happen on the patient separately.
func (d *Doctor) LogCondition(now time.Time, patientID, note, treatment string, cost float64) {
	if d.Notes == nil {
		d.Notes = make(map[string][]ClinicalNote)
	}
	d.Notes[patientID] = append(d.Notes[patientID], ClinicalNote{
		Date:      now.Format(DateLayout),
		Note:      note,
		Treatment: treatment,
		Cost:      cost,
	})
}

// DischargePatient settles the patient via Discharge and withdraws them from
// the roster.
func (d *Doctor) DischargePatient(now time.Time, p *Patient, bill *float64) {
	p.Discharge(now, bill)
	d.WithdrawPatient(p.ID)
}

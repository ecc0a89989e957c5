package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cliniccore/pkg/domain"
)

// MetricsRecorder receives one observation per service operation, including
// the violation count from the transaction result so outcomes like
// unassigned patients are countable, not just failures.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, violations int, duration time.Duration)
}

// TraceSpan terminates a trace started for an operation, carrying the entity
// id the operation resolved and the rule violations in its result.
type TraceSpan interface {
	End(entityID string, res Result, err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// AuditStatus classifies an audit entry outcome.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditOK     AuditStatus = "ok"
	AuditFailed AuditStatus = "failed"
)

// AuditEntry captures one service operation for the audit trail.
type AuditEntry struct {
	Operation  string         `json:"operation"`
	Status     AuditStatus    `json:"status"`
	EntityID   string         `json:"entity_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	Violations int            `json:"violations,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AuditRecorder records service audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Service exposes the transactional clinic operations over a persistent
// store: registration, triage, assignment, treatment logging, billing,
// discharge, and leave reassignment.
type Service struct {
	store   domain.PersistentStore
	nowFn   func() time.Time
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithClock overrides the service time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// WithAuditRecorder attaches an audit trail recorder.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) { s.audit = rec }
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches an operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultRulesEngine returns an engine with the clinic invariants registered.
func DefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(StatusTransitionRule())
	engine.Register(ExclusiveAssignmentRule())
	return engine
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) recordAudit(ctx context.Context, operation, entityID string, res Result, err error) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{
		Operation:  operation,
		Status:     AuditOK,
		EntityID:   entityID,
		Violations: len(res.Violations),
		OccurredAt: s.nowFn(),
	}
	if err != nil {
		entry.Status = AuditFailed
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// run executes op inside tracing/metrics instrumentation.
func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context) (string, Result, error)) (Result, error) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	entityID, res, err := fn(ctx)
	if span != nil {
		span.End(entityID, res, err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, len(res.Violations), time.Since(started))
	}
	s.recordAudit(ctx, operation, entityID, res, err)
	return res, err
}

// RegisterDoctor creates a doctor record.
func (s *Service) RegisterDoctor(ctx context.Context, name, specialization string) (Doctor, Result, error) {
	var created Doctor
	res, err := s.run(ctx, "register_doctor", func(ctx context.Context) (string, Result, error) {
		name := strings.TrimSpace(name)
		specialization := strings.TrimSpace(specialization)
		if name == "" || specialization == "" {
			return "", Result{}, validationErrorf("name and specialization are required")
		}
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateDoctor(Doctor{Name: name, Specialization: specialization})
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// RegisterPatientInput carries a registration request.
type RegisterPatientInput struct {
	Name      string
	Age       int
	Gender    string
	Symptoms  []string
	Condition string
}

// RegistrationOutcome reports the result of registering a patient: the
// created record, the assigned doctor when one exists, and a display message
// describing the triage outcome.
type RegistrationOutcome struct {
	Patient Patient
	Doctor  *Doctor
	Message string
}

// RegisterPatient creates a patient, assigns a doctor by symptom
// specialization and load, and triages the patient onto the inpatient or
// outpatient path. When no doctor is registered the patient stays in the
// registered state and the result carries a log-severity violation; the
// registration itself still succeeds.
func (s *Service) RegisterPatient(ctx context.Context, input RegisterPatientInput) (RegistrationOutcome, Result, error) {
	var outcome RegistrationOutcome
	res, err := s.run(ctx, "register_patient", func(ctx context.Context) (string, Result, error) {
		name := strings.TrimSpace(input.Name)
		gender := strings.TrimSpace(input.Gender)
		symptoms := make([]string, 0, len(input.Symptoms))
		for _, symptom := range input.Symptoms {
			if trimmed := strings.TrimSpace(symptom); trimmed != "" {
				symptoms = append(symptoms, trimmed)
			}
		}
		if name == "" || gender == "" {
			return "", Result{}, validationErrorf("name and gender are required")
		}
		if input.Age <= 0 {
			return "", Result{}, validationErrorf("age must be positive")
		}
		if len(symptoms) == 0 {
			return "", Result{}, validationErrorf("at least one symptom is required")
		}

		var unassigned bool
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			created, err := tx.CreatePatient(Patient{
				Name:     name,
				Age:      input.Age,
				Gender:   gender,
				Symptoms: symptoms,
			})
			if err != nil {
				return err
			}
			outcome.Patient = created

			doctor, found := chooseDoctor(tx.Snapshot().ListDoctors(), symptoms)
			if found {
				updatedDoctor, err := tx.UpdateDoctor(doctor.ID, func(d *Doctor) error {
					if !d.HasPatient(created.ID) {
						d.Patients = append(d.Patients, created.ID)
					}
					return nil
				})
				if err != nil {
					return err
				}
				doctorID := doctor.ID
				if _, err := tx.UpdatePatient(created.ID, func(p *Patient) error {
					p.AssignedDoctorID = &doctorID
					return nil
				}); err != nil {
					return err
				}
				outcome.Doctor = &updatedDoctor
			}

			now := s.nowFn()
			unassigned = !found
			switch {
			case domain.ShouldAdmit(symptoms, input.Condition):
				updated, err := tx.UpdatePatient(created.ID, func(p *Patient) error {
					p.Admit(now)
					return nil
				})
				if err != nil {
					return err
				}
				outcome.Patient = updated
				outcome.Message = fmt.Sprintf("%s admitted as inpatient", updated.Name)
			case found:
				note := fmt.Sprintf("Outpatient advice by %s", doctor.Name)
				updated, err := tx.UpdatePatient(created.ID, func(p *Patient) error {
					p.SetOutpatient(now, note)
					return nil
				})
				if err != nil {
					return err
				}
				outcome.Patient = updated
				outcome.Message = fmt.Sprintf("%s set as outpatient", updated.Name)
			default:
				outcome.Message = fmt.Sprintf("%s registered but no doctor available", created.Name)
			}

			if refreshed, ok := tx.FindPatient(created.ID); ok {
				outcome.Patient = refreshed
			}
			return nil
		})
		if err != nil {
			return "", res, err
		}
		if unassigned {
			res.Merge(Result{Violations: []Violation{{
				Rule:     "doctor_assignment",
				Severity: SeverityLog,
				Message:  "no doctors available for assignment",
				Entity:   EntityPatient,
				EntityID: outcome.Patient.ID,
			}}})
		}
		return outcome.Patient.ID, res, nil
	})
	return outcome, res, err
}

// TreatmentInput carries a treatment log request against an admitted patient.
type TreatmentInput struct {
	PatientID string
	Note      string
	Treatment string
	Cost      float64
	Discharge bool
}

// RecordTreatment logs a treatment day for an inpatient: the assigned doctor
// records a clinical note and the cost accrues into the patient's history and
// bill. When the discharge flag is set the doctor discharges the patient with
// the itemized history total.
func (s *Service) RecordTreatment(ctx context.Context, input TreatmentInput) (Patient, Result, error) {
	var updated Patient
	res, err := s.run(ctx, "record_treatment", func(ctx context.Context) (string, Result, error) {
		if input.Cost < 0 {
			return "", Result{}, validationErrorf("cost must not be negative")
		}
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			patient, ok := tx.FindPatient(input.PatientID)
			if !ok {
				return ErrNotFound{Entity: EntityPatient, ID: input.PatientID}
			}
			if patient.Status != StatusInpatient {
				return validationErrorf("patient %s is not admitted for treatment", patient.ID)
			}
			if patient.AssignedDoctorID == nil {
				return ErrNotFound{Entity: EntityDoctor, ID: ""}
			}
			doctorID := *patient.AssignedDoctorID
			if _, ok := tx.FindDoctor(doctorID); !ok {
				return ErrNotFound{Entity: EntityDoctor, ID: doctorID}
			}

			now := s.nowFn()
			historyNote := strings.TrimSpace(input.Note)
			if treatment := strings.TrimSpace(input.Treatment); treatment != "" {
				historyNote = fmt.Sprintf("%s, Treatment: %s", historyNote, treatment)
			}
			if _, err := tx.UpdateDoctor(doctorID, func(d *Doctor) error {
				d.LogCondition(now, patient.ID, strings.TrimSpace(input.Note), strings.TrimSpace(input.Treatment), input.Cost)
				return nil
			}); err != nil {
				return err
			}
			var err error
			updated, err = tx.UpdatePatient(patient.ID, func(p *Patient) error {
				p.AddHistory(now, historyNote, input.Cost)
				return nil
			})
			if err != nil {
				return err
			}

			if input.Discharge {
				if _, err := tx.UpdateDoctor(doctorID, func(d *Doctor) error {
					d.WithdrawPatient(patient.ID)
					return nil
				}); err != nil {
					return err
				}
				updated, err = tx.UpdatePatient(patient.ID, func(p *Patient) error {
					p.Discharge(now, nil)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		return input.PatientID, res, err
	})
	return updated, res, err
}

// DischargePatient settles and discharges a patient outside the treatment
// flow. The bill applies only to never-admitted patients; patients with an
// admission are always billed the sum of their history.
func (s *Service) DischargePatient(ctx context.Context, patientID string, bill *float64) (Patient, Result, error) {
	var updated Patient
	res, err := s.run(ctx, "discharge_patient", func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			patient, ok := tx.FindPatient(patientID)
			if !ok {
				return ErrNotFound{Entity: EntityPatient, ID: patientID}
			}
			if patient.Status == StatusDischarged {
				return validationErrorf("patient %s is already discharged", patientID)
			}
			now := s.nowFn()
			if patient.AssignedDoctorID != nil {
				if _, ok := tx.FindDoctor(*patient.AssignedDoctorID); ok {
					if _, err := tx.UpdateDoctor(*patient.AssignedDoctorID, func(d *Doctor) error {
						d.WithdrawPatient(patientID)
						return nil
					}); err != nil {
						return err
					}
				}
			}
			var err error
			updated, err = tx.UpdatePatient(patientID, func(p *Patient) error {
				p.Discharge(now, bill)
				return nil
			})
			return err
		})
		return patientID, res, err
	})
	return updated, res, err
}

// LeaveOutcome reports a doctor-leave sweep: how many patients moved and
// which patient ids no eligible doctor could take over.
type LeaveOutcome struct {
	Doctor     Doctor
	Reassigned int
	Unassigned []string
}

// MarkDoctorOnLeave flags the doctor as on leave and redistributes their
// roster: same-specialization doctors first, any available doctor second,
// least-loaded with id tie-break in both passes. Patients nobody can take
// stay on the departing doctor's roster and are reported as log-severity
// violations; the sweep never aborts early.
func (s *Service) MarkDoctorOnLeave(ctx context.Context, doctorID string) (LeaveOutcome, Result, error) {
	var outcome LeaveOutcome
	res, err := s.run(ctx, "mark_doctor_on_leave", func(ctx context.Context) (string, Result, error) {
		var stranded []string
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			departing, ok := tx.FindDoctor(doctorID)
			if !ok {
				return ErrNotFound{Entity: EntityDoctor, ID: doctorID}
			}
			if _, err := tx.UpdateDoctor(doctorID, func(d *Doctor) error {
				d.OnLeave = true
				return nil
			}); err != nil {
				return err
			}
			departing.OnLeave = true

			for _, pid := range departing.Patients {
				patient, ok := tx.FindPatient(pid)
				if !ok {
					continue
				}
				replacement, found := chooseReplacement(tx.Snapshot().ListDoctors(), departing)
				if !found {
					stranded = append(stranded, patient.ID)
					continue
				}
				if _, err := tx.UpdateDoctor(replacement.ID, func(d *Doctor) error {
					if !d.HasPatient(pid) {
						d.Patients = append(d.Patients, pid)
					}
					return nil
				}); err != nil {
					return err
				}
				replacementID := replacement.ID
				if _, err := tx.UpdatePatient(pid, func(p *Patient) error {
					p.AssignedDoctorID = &replacementID
					return nil
				}); err != nil {
					return err
				}
				if _, err := tx.UpdateDoctor(doctorID, func(d *Doctor) error {
					d.WithdrawPatient(pid)
					return nil
				}); err != nil {
					return err
				}
				outcome.Reassigned++
			}

			updated, ok := tx.FindDoctor(doctorID)
			if ok {
				outcome.Doctor = updated
			}
			return nil
		})
		if err != nil {
			return doctorID, res, err
		}
		outcome.Unassigned = stranded
		for _, pid := range stranded {
			res.Merge(Result{Violations: []Violation{{
				Rule:     "doctor_leave",
				Severity: SeverityLog,
				Message:  fmt.Sprintf("no available doctor to take over patient %s", pid),
				Entity:   EntityPatient,
				EntityID: pid,
			}}})
		}
		return doctorID, res, nil
	})
	return outcome, res, err
}

// GetPatient returns a patient by id.
func (s *Service) GetPatient(id string) (Patient, bool) {
	return s.store.GetPatient(id)
}

// GetDoctor returns a doctor by id.
func (s *Service) GetDoctor(id string) (Doctor, bool) {
	return s.store.GetDoctor(id)
}

// ListPatients returns all patients ordered by id.
func (s *Service) ListPatients() []Patient {
	return s.store.ListPatients()
}

// ListDoctors returns all doctors ordered by id.
func (s *Service) ListDoctors() []Doctor {
	return s.store.ListDoctors()
}

// Statistics aggregates census and revenue counters.
type Statistics struct {
	TotalPatients int     `json:"total_patients"`
	Inpatients    int     `json:"inpatients"`
	Outpatients   int     `json:"outpatients"`
	Discharged    int     `json:"discharged"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalDoctors  int     `json:"total_doctors"`
}

// Statistics computes counts by status, total billed revenue, and the doctor
// count from a consistent read snapshot.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, p := range view.ListPatients() {
			stats.TotalPatients++
			switch p.Status {
			case StatusInpatient:
				stats.Inpatients++
			case StatusOutpatient:
				stats.Outpatients++
			case StatusDischarged:
				stats.Discharged++
			}
			stats.TotalRevenue += p.BillAmount
		}
		stats.TotalDoctors = len(view.ListDoctors())
		return nil
	})
	return stats, err
}

// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cliniccore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Patient aliases domain.Patient for in-memory persistence operations.
	Patient = domain.Patient
	// Doctor aliases domain.Doctor.
	Doctor = domain.Doctor
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	patients map[string]Patient
	doctors  map[string]Doctor
}

// Snapshot captures a point-in-time clone of the store state. It doubles as
// the serialization shape durable drivers persist.
type Snapshot struct {
	Patients map[string]Patient `json:"patients"`
	Doctors  map[string]Doctor  `json:"doctors"`
}

func newMemoryState() memoryState {
	return memoryState{
		patients: make(map[string]Patient),
		doctors:  make(map[string]Doctor),
	}
}

func clonePatient(p Patient) Patient {
	cp := p
	cp.Symptoms = append([]string(nil), p.Symptoms...)
	cp.History = append([]domain.TreatmentEntry(nil), p.History...)
	if p.AssignedDoctorID != nil {
		id := *p.AssignedDoctorID
		cp.AssignedDoctorID = &id
	}
	if p.AdmittedAt != nil {
		d := *p.AdmittedAt
		cp.AdmittedAt = &d
	}
	if p.DischargedAt != nil {
		d := *p.DischargedAt
		cp.DischargedAt = &d
	}
	return cp
}

func cloneDoctor(d Doctor) Doctor {
	cp := d
	cp.Patients = append([]string(nil), d.Patients...)
	if d.Notes != nil {
		cp.Notes = make(map[string][]domain.ClinicalNote, len(d.Notes))
		for pid, notes := range d.Notes {
			cp.Notes[pid] = append([]domain.ClinicalNote(nil), notes...)
		}
	}
	return cp
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.patients {
		out.patients[k] = clonePatient(v)
	}
	for k, v := range s.doctors {
		out.doctors[k] = cloneDoctor(v)
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Patients: make(map[string]Patient, len(state.patients)),
		Doctors:  make(map[string]Doctor, len(state.doctors)),
	}
	for k, v := range state.patients {
		s.Patients[k] = clonePatient(v)
	}
	for k, v := range state.doctors {
		s.Doctors[k] = cloneDoctor(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Patients {
		state.patients[k] = clonePatient(v)
	}
	for k, v := range s.Doctors {
		state.doctors[k] = cloneDoctor(v)
	}
	return state
}

// migrateSnapshot normalizes snapshots written by older or hand-edited
// stores: nil maps become empty, optional fields get their defaults, and the
// running treatment total is rebuilt from history when absent.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Patients == nil {
		snapshot.Patients = map[string]Patient{}
	}
	if snapshot.Doctors == nil {
		snapshot.Doctors = map[string]Doctor{}
	}
	for id, p := range snapshot.Patients {
		if p.ID == "" {
			p.ID = id
		}
		if p.Status == "" {
			p.Status = domain.StatusRegistered
		}
		if p.History == nil {
			p.History = []domain.TreatmentEntry{}
		}
		if p.TreatmentTotal == 0 && len(p.History) > 0 {
			for _, entry := range p.History {
				p.TreatmentTotal += entry.Cost
			}
		}
		snapshot.Patients[id] = p
	}
	for id, d := range snapshot.Doctors {
		if d.ID == "" {
			d.ID = id
		}
		if d.Patients == nil {
			d.Patients = []string{}
		}
		if d.Notes == nil {
			d.Notes = map[string][]domain.ClinicalNote{}
		}
		snapshot.Doctors[id] = d
	}
	return snapshot
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Id prefixes follow the PAT-/DOC- convention of the stored JSON records.
const (
	patientIDPrefix = "PAT-"
	doctorIDPrefix  = "DOC-"
)

func shortID(prefix string) string {
	return prefix + strings.ToUpper(uuid.NewString()[:5])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider, primarily for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListPatients returns all patients within the snapshot, ordered by id.
func (v transactionView) ListPatients() []Patient {
	out := make([]Patient, 0, len(v.state.patients))
	for _, p := range v.state.patients {
		out = append(out, clonePatient(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListDoctors returns all doctors within the snapshot, ordered by id.
func (v transactionView) ListDoctors() []Doctor {
	out := make([]Doctor, 0, len(v.state.doctors))
	for _, d := range v.state.doctors {
		out = append(out, cloneDoctor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindPatient retrieves a patient by id from the snapshot.
func (v transactionView) FindPatient(id string) (Patient, bool) {
	p, ok := v.state.patients[id]
	if !ok {
		return Patient{}, false
	}
	return clonePatient(p), true
}

// FindDoctor retrieves a doctor by id from the snapshot.
func (v transactionView) FindDoctor(id string) (Doctor, bool) {
	d, ok := v.state.doctors[id]
	if !ok {
		return Doctor{}, false
	}
	return cloneDoctor(d), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the post-mutation state; blocking violations
// abort the commit with a RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindPatient exposes patient lookup within the transaction scope.
func (tx *transaction) FindPatient(id string) (Patient, bool) {
	p, ok := tx.state.patients[id]
	if !ok {
		return Patient{}, false
	}
	return clonePatient(p), true
}

// FindDoctor exposes doctor lookup within the transaction scope.
func (tx *transaction) FindDoctor(id string) (Doctor, bool) {
	d, ok := tx.state.doctors[id]
	if !ok {
		return Doctor{}, false
	}
	return cloneDoctor(d), true
}

func (tx *transaction) newPatientID() string {
	for {
		id := shortID(patientIDPrefix)
		if _, exists := tx.state.patients[id]; !exists {
			return id
		}
	}
}

func (tx *transaction) newDoctorID() string {
	for {
		id := shortID(doctorIDPrefix)
		if _, exists := tx.state.doctors[id]; !exists {
			return id
		}
	}
}

// CreatePatient stores a new patient, assigning a fresh PAT- id unless the
// caller supplied one (snapshot import paths).
func (tx *transaction) CreatePatient(p Patient) (Patient, error) {
	if p.ID == "" {
		p.ID = tx.newPatientID()
	} else if _, exists := tx.state.patients[p.ID]; exists {
		return Patient{}, fmt.Errorf("patient %s already exists", p.ID)
	}
	if p.Status == "" {
		p.Status = domain.StatusRegistered
	}
	if p.History == nil {
		p.History = []domain.TreatmentEntry{}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.patients[p.ID] = clonePatient(p)
	tx.recordChange(Change{Entity: domain.EntityPatient, Action: domain.ActionCreate, After: clonePatient(p)})
	return clonePatient(p), nil
}

// UpdatePatient applies mutator to the stored patient and records the change.
func (tx *transaction) UpdatePatient(id string, mutator func(*Patient) error) (Patient, error) {
	current, ok := tx.state.patients[id]
	if !ok {
		return Patient{}, fmt.Errorf("patient %s not found", id)
	}
	before := clonePatient(current)
	updated := clonePatient(current)
	if err := mutator(&updated); err != nil {
		return Patient{}, err
	}
	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.now
	tx.state.patients[id] = clonePatient(updated)
	tx.recordChange(Change{Entity: domain.EntityPatient, Action: domain.ActionUpdate, Before: before, After: clonePatient(updated)})
	return clonePatient(updated), nil
}

// CreateDoctor stores a new doctor, assigning a fresh DOC- id unless the
// caller supplied one.
func (tx *transaction) CreateDoctor(d Doctor) (Doctor, error) {
	if d.ID == "" {
		d.ID = tx.newDoctorID()
	} else if _, exists := tx.state.doctors[d.ID]; exists {
		return Doctor{}, fmt.Errorf("doctor %s already exists", d.ID)
	}
	if d.Patients == nil {
		d.Patients = []string{}
	}
	if d.Notes == nil {
		d.Notes = map[string][]domain.ClinicalNote{}
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.doctors[d.ID] = cloneDoctor(d)
	tx.recordChange(Change{Entity: domain.EntityDoctor, Action: domain.ActionCreate, After: cloneDoctor(d)})
	return cloneDoctor(d), nil
}

// UpdateDoctor applies mutator to the stored doctor and records the change.
func (tx *transaction) UpdateDoctor(id string, mutator func(*Doctor) error) (Doctor, error) {
	current, ok := tx.state.doctors[id]
	if !ok {
		return Doctor{}, fmt.Errorf("doctor %s not found", id)
	}
	before := cloneDoctor(current)
	updated := cloneDoctor(current)
	if err := mutator(&updated); err != nil {
		return Doctor{}, err
	}
	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.now
	tx.state.doctors[id] = cloneDoctor(updated)
	tx.recordChange(Change{Entity: domain.EntityDoctor, Action: domain.ActionUpdate, Before: before, After: cloneDoctor(updated)})
	return cloneDoctor(updated), nil
}

// GetPatient returns a patient by id from the committed state.
func (s *Store) GetPatient(id string) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.patients[id]
	if !ok {
		return Patient{}, false
	}
	return clonePatient(p), true
}

// ListPatients returns all committed patients ordered by id.
func (s *Store) ListPatients() []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := transactionView{state: &s.state}
	return view.ListPatients()
}

// GetDoctor returns a doctor by id from the committed state.
func (s *Store) GetDoctor(id string) (Doctor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.doctors[id]
	if !ok {
		return Doctor{}, false
	}
	return cloneDoctor(d), true
}

// ListDoctors returns all committed doctors ordered by id.
func (s *Store) ListDoctors() []Doctor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := transactionView{state: &s.state}
	return view.ListDoctors()
}

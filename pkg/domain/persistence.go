package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Entities are never deleted: patients
// end in the discharged state and doctors are marked on leave.
type Transaction interface {
	Snapshot() TransactionView
	CreatePatient(Patient) (Patient, error)
	UpdatePatient(id string, mutator func(*Patient) error) (Patient, error)
	CreateDoctor(Doctor) (Doctor, error)
	UpdateDoctor(id string, mutator func(*Doctor) error) (Doctor, error)
	FindPatient(id string) (Patient, bool)
	FindDoctor(id string) (Doctor, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListPatients() []Patient
	ListDoctors() []Doctor
	FindPatient(id string) (Patient, bool)
	FindDoctor(id string) (Doctor, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPatient(id string) (Patient, bool)
	ListPatients() []Patient
	GetDoctor(id string) (Doctor, bool)
	ListDoctors() []Doctor
}

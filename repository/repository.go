package repository

import "context"

// Repository persists triage records and reads them back per patient.
// Implementations return *StorageError for every backend failure.
type Repository interface {
	// Save writes the whole record atomically. The record must carry
	// patient_id and timestamp; it is returned unchanged on success.
	Save(ctx context.Context, record Record) (Record, error)
	// ListByPatient returns up to the configured limit (default 10) of the
	// patient's records, most recent timestamp first.
	ListByPatient(ctx context.Context, patientId string, opts ...ListOption) ([]Record, error)
}

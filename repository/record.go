package repository

import (
	getsafe "github.com/w-h-a/triage/util/get_safe"
)

const (
	PatientIdKey = "patient_id"
	TimestampKey = "timestamp"
	TriageIdKey  = "triage_id"
)

// Record is one triage event as a document tree.
type Record map[string]any

func (r Record) PatientId() string {
	return getsafe.String(r, PatientIdKey)
}

func (r Record) Timestamp() string {
	return getsafe.String(r, TimestampKey)
}

func (r Record) TriageId() string {
	return getsafe.String(r, TriageIdKey)
}

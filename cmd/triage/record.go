package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/triage/repository"
	"gopkg.in/yaml.v3"
)

var now = func() time.Time { return time.Now().UTC() }

// readRecord decodes one YAML (or JSON) document and fills in triage_id and
// timestamp when the caller left them out.
func readRecord(r io.Reader) (repository.Record, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("record is empty")
	}

	record, ok := repository.Transform(doc, yamlLeaf).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record is not a mapping")
	}

	rec := repository.Record(record)

	if len(rec.PatientId()) == 0 {
		return nil, fmt.Errorf("record has no %s", repository.PatientIdKey)
	}
	if _, ok := rec[repository.TriageIdKey]; !ok {
		rec[repository.TriageIdKey] = uuid.NewString()
	}
	if _, ok := rec[repository.TimestampKey]; !ok {
		rec[repository.TimestampKey] = now().Format(time.RFC3339Nano)
	}

	return rec, nil
}

// yamlLeaf widens yaml's int to int64 so CLI records read back the way they
// were written.
func yamlLeaf(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	}
	return v
}

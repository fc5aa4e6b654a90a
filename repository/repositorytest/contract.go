// Package repositorytest holds the behavior every repository.Repository
// implementation has to show. Adapter packages call Run from their own tests.
package repositorytest

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/triage/repository"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) repository.Repository

func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("save returns the record unchanged", func(t *testing.T) {
		repo := newRepo(t)
		rec := triage("PAT-2024-001", "2024-03-01T10:00:00Z")
		rec["score"] = 4.5

		got, err := repo.Save(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("lists most recent first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, ts := range []string{"2024-03-01T10:00:00Z", "2024-03-01T12:00:00Z", "2024-03-01T11:00:00Z"} {
			_, err := repo.Save(ctx, triage("PAT-1", ts))
			require.NoError(t, err)
		}

		got, err := repo.ListByPatient(ctx, "PAT-1", repository.WithLimit(10))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"2024-03-01T12:00:00Z",
			"2024-03-01T11:00:00Z",
			"2024-03-01T10:00:00Z",
		}, timestamps(got))
	})

	t.Run("limit keeps the most recent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for i := 1; i <= 5; i++ {
			_, err := repo.Save(ctx, triage("PAT-1", fmt.Sprintf("2024-03-0%dT08:00:00Z", i)))
			require.NoError(t, err)
		}

		got, err := repo.ListByPatient(ctx, "PAT-1", repository.WithLimit(3))
		require.NoError(t, err)
		assert.Equal(t, []string{
			"2024-03-05T08:00:00Z",
			"2024-03-04T08:00:00Z",
			"2024-03-03T08:00:00Z",
		}, timestamps(got))
	})

	t.Run("default limit is ten", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for i := 0; i < 12; i++ {
			_, err := repo.Save(ctx, triage("PAT-1", fmt.Sprintf("2024-03-01T08:%02d:00Z", i)))
			require.NoError(t, err)
		}

		got, err := repo.ListByPatient(ctx, "PAT-1")
		require.NoError(t, err)
		require.Len(t, got, repository.DefaultLimit)
		assert.Equal(t, "2024-03-01T08:11:00Z", got[0].Timestamp())
		assert.Equal(t, "2024-03-01T08:02:00Z", got[9].Timestamp())
	})

	t.Run("unknown patient lists empty", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.ListByPatient(context.Background(), "PAT-NOBODY")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("patients are isolated", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Save(ctx, triage("PAT-A", "2024-03-01T10:00:00Z"))
		require.NoError(t, err)
		_, err = repo.Save(ctx, triage("PAT-B", "2024-03-01T11:00:00Z"))
		require.NoError(t, err)

		got, err := repo.ListByPatient(ctx, "PAT-A")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "PAT-A", got[0].PatientId())
	})

	t.Run("same key replaces the record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first := triage("PAT-1", "2024-03-01T10:00:00Z")
		first["priority"] = "yellow"
		second := triage("PAT-1", "2024-03-01T10:00:00Z")
		second["priority"] = "red"

		_, err := repo.Save(ctx, first)
		require.NoError(t, err)
		_, err = repo.Save(ctx, second)
		require.NoError(t, err)

		got, err := repo.ListByPatient(ctx, "PAT-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "red", got[0]["priority"])
	})

	t.Run("numbers and nesting survive the round trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := repository.Record{
			"patient_id": "PAT-1",
			"timestamp":  "2024-03-01T10:00:00Z",
			"triage_id":  "T-1",
			"input": map[string]any{
				"vitals": map[string]any{
					"temperature": 38.2,
					"heart_rate":  112,
					"spo2":        0.97,
					"weight":      70.0,
				},
				"symptoms": []any{"fever", "cough"},
			},
			"output": map[string]any{
				"scores": []any{1.5, 2.0, map[string]any{"news2": 7}},
				"notes":  "monitor",
				"urgent": true,
				"extra":  nil,
			},
		}

		_, err := repo.Save(ctx, rec)
		require.NoError(t, err)

		got, err := repo.ListByPatient(ctx, "PAT-1")
		require.NoError(t, err)
		require.Len(t, got, 1)

		assert.Equal(t, repository.Record{
			"patient_id": "PAT-1",
			"timestamp":  "2024-03-01T10:00:00Z",
			"triage_id":  "T-1",
			"input": map[string]any{
				"vitals": map[string]any{
					"temperature": 38.2,
					"heart_rate":  int64(112),
					"spo2":        0.97,
					"weight":      int64(70),
				},
				"symptoms": []any{"fever", "cough"},
			},
			"output": map[string]any{
				"scores": []any{1.5, int64(2), map[string]any{"news2": int64(7)}},
				"notes":  "monitor",
				"urgent": true,
				"extra":  nil,
			},
		}, got[0])
	})

	t.Run("non-finite numbers are rejected on save", func(t *testing.T) {
		repo := newRepo(t)
		rec := triage("PAT-1", "2024-03-01T10:00:00Z")
		rec["score"] = math.NaN()

		_, err := repo.Save(context.Background(), rec)

		var storageErr *repository.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, repository.OperationPutItem, storageErr.Operation)
	})
}

func triage(patientId string, ts string) repository.Record {
	return repository.Record{
		repository.PatientIdKey: patientId,
		repository.TimestampKey: ts,
	}
}

func timestamps(records []repository.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Timestamp())
	}
	return out
}

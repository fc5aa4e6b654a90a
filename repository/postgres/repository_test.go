package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/triage/repository"
)

var (
	insertQuery = regexp.QuoteMeta(`INSERT INTO "MediFlow-Triages" (patient_id, "timestamp", document)`)
	selectQuery = regexp.QuoteMeta(`FROM "MediFlow-Triages"`)
)

// jsonDocument matches the JSONB argument by its decoded content.
type jsonDocument map[string]any

func (d jsonDocument) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		return false
	}
	want, _ := json.Marshal(map[string]any(d))
	have, _ := json.Marshal(got)
	return string(want) == string(have)
}

func newMock(t *testing.T) (repository.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(WithDB(db)), mock
}

func TestPostgresRepository_Save(t *testing.T) {
	repo, mock := newMock(t)

	rec := repository.Record{
		"patient_id": "PAT-2024-001",
		"timestamp":  "2024-03-01T10:00:00Z",
		"vitals":     map[string]any{"temperature": 38.5, "heart_rate": 90, "weight": 70.0},
	}

	mock.ExpectExec(insertQuery).
		WithArgs("PAT-2024-001", "2024-03-01T10:00:00Z", jsonDocument{
			"patient_id": "PAT-2024-001",
			"timestamp":  "2024-03-01T10:00:00Z",
			"vitals":     map[string]any{"temperature": 38.5, "heart_rate": 90, "weight": 70},
		}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveFailure(t *testing.T) {
	repo, mock := newMock(t)

	pqErr := &pq.Error{Code: "23514", Message: "new row violates check constraint"}
	mock.ExpectExec(insertQuery).WillReturnError(pqErr)

	_, err := repo.Save(context.Background(), repository.Record{"patient_id": "PAT-1", "timestamp": "t1"})

	var storageErr *repository.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, repository.OperationPutItem, storageErr.Operation)
	assert.Equal(t, "new row violates check constraint", storageErr.Message)
	assert.ErrorIs(t, err, pqErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByPatient(t *testing.T) {
	repo, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"document"}).
		AddRow([]byte(`{"patient_id":"PAT-1","timestamp":"t3","score":2,"vitals":{"temperature":37.25,"readings":[1.5,2]}}`)).
		AddRow([]byte(`{"patient_id":"PAT-1","timestamp":"t2","score":1.75}`))

	mock.ExpectQuery(selectQuery).
		WithArgs("PAT-1", int64(2)).
		WillReturnRows(rows)

	got, err := repo.ListByPatient(context.Background(), "PAT-1", repository.WithLimit(2))
	require.NoError(t, err)

	assert.Equal(t, []repository.Record{
		{
			"patient_id": "PAT-1",
			"timestamp":  "t3",
			"score":      int64(2),
			"vitals":     map[string]any{"temperature": 37.25, "readings": []any{1.5, int64(2)}},
		},
		{
			"patient_id": "PAT-1",
			"timestamp":  "t2",
			"score":      1.75,
		},
	}, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListEmpty(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("PAT-NOBODY", int64(repository.DefaultLimit)).
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	got, err := repo.ListByPatient(context.Background(), "PAT-NOBODY")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_QueryFailure(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(selectQuery).WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.ListByPatient(context.Background(), "PAT-1")

	var storageErr *repository.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, repository.OperationQuery, storageErr.Operation)
	assert.Equal(t, "[Query] connection reset by peer", err.Error())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CorruptDocument(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(selectQuery).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte(`{not json`)))

	_, err := repo.ListByPatient(context.Background(), "PAT-1")

	var storageErr *repository.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, repository.OperationQuery, storageErr.Operation)
}

func TestPostgresRepository_ListOrdersTimestampsByteWise(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "timestamp" COLLATE "C" DESC`)).
		WithArgs("PAT-1", int64(repository.DefaultLimit)).
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	_, err := repo.ListByPatient(context.Background(), "PAT-1")
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

package predictionlog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-risk-service/internal/domain"
)

var recordColumns = []string{"id", "timestamp", "input_data", "prediction", "probability", "result"}

func setupMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS predictions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLiteStoreFromDB(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store, mock
}

func TestNewSQLiteStoreFromDB_SchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS predictions").
		WillReturnError(errors.New("attempt to write a readonly database"))

	_, err = NewSQLiteStoreFromDB(context.Background(), db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Append_Mock(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec("INSERT INTO predictions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, 0.8477405578, domain.LabelDisease).
		WillReturnResult(sqlmock.NewResult(7, 1))

	record := sampleRecord(63)
	id, err := store.Append(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Append_InsertError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec("INSERT INTO predictions").
		WillReturnError(errors.New("disk I/O error"))

	record := sampleRecord(63)
	_, err := store.Append(context.Background(), record)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.Zero(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Recent_QueryError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT id, timestamp, input_data").
		WithArgs(5).
		WillReturnError(errors.New("database is locked"))

	_, err := store.Recent(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Recent_CorruptRow(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		input     string
	}{
		{"bad input json", "2024-01-01T00:00:00Z", "{not json"},
		{"bad timestamp", "yesterday", `{"age":63}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupMockStore(t)

			rows := sqlmock.NewRows(recordColumns).
				AddRow(1, tt.timestamp, tt.input, 1, 0.9, domain.LabelDisease)
			mock.ExpectQuery("SELECT id, timestamp, input_data").WillReturnRows(rows)

			_, err := store.Recent(context.Background(), 5)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrStore))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStore_Recent_ScanError(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows(recordColumns).
		AddRow(1, "2024-01-01T00:00:00Z", `{"age":63}`, "abc", 0.9, domain.LabelDisease)
	mock.ExpectQuery("SELECT id, timestamp, input_data").WillReturnRows(rows)

	_, err := store.Recent(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.Contains(t, err.Error(), "scanning prediction row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Count_Error(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM predictions`).
		WillReturnError(errors.New("no such table: predictions"))

	_, err := store.Count(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

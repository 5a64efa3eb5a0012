package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	store := NewPostgresStore(sqlx.NewDb(db, "sqlmock"))
	store.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return store, mock, func() { db.Close() }
}

func TestPostgresStoreListAll(t *testing.T) {
	store, mock, cleanup := newDocumentMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "fields"}).
		AddRow("a", []byte(`{"name":"Mina","present":true}`)).
		AddRow("b", []byte(`{"seconds":1714550400}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, fields FROM documents WHERE collection = $1 ORDER BY created_at, id")).
		WithArgs("students").
		WillReturnRows(rows)

	docs, err := store.ListAll(context.Background(), "students")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "Mina", docs[0].Fields["name"])
	assert.Equal(t, true, docs[0].Fields["present"])
	assert.Equal(t, "1714550400", docs[1].Fields["seconds"].(interface{ String() string }).String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	store, mock, cleanup := newDocumentMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, fields FROM documents WHERE collection = $1 AND id = $2")).
		WithArgs("students", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fields"}))

	_, err := store.Get(context.Background(), "students", "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreate(t *testing.T) {
	store, mock, cleanup := newDocumentMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("attendance", sqlmock.AnyArg(), []byte(`{"present":true,"studentId":"s1"}`), time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Create(context.Background(), "attendance", map[string]interface{}{"studentId": "s1", "present": true})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateMissing(t *testing.T) {
	store, mock, cleanup := newDocumentMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET fields = fields || $3::jsonb")).
		WithArgs("students", "missing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), "students", "missing", map[string]interface{}{"name": "x"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteFailure(t *testing.T) {
	store, mock, cleanup := newDocumentMock(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("students", "a").
		WillReturnError(errors.New("connection reset"))

	err := store.Delete(context.Background(), "students", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

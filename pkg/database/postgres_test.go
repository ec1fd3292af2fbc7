package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestRequireTable(t *testing.T) {
	db, mock := newMockDB(t)
	lookup := regexp.QuoteMeta(`SELECT to_regclass($1) IS NOT NULL`)

	mock.ExpectQuery(lookup).WithArgs("inbox").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(true))
	require.NoError(t, RequireTable(context.Background(), db, "inbox"))

	mock.ExpectQuery(lookup).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(false))
	err := RequireTable(context.Background(), db, "nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Contains(t, err.Error(), "nope")

	require.NoError(t, mock.ExpectationsWereMet())
}

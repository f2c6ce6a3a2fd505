package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-presence-api/pkg/config"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

func newClientMock(t *testing.T) (*Client, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewClientFromDB(sqlx.NewDb(db, "sqlmock"), TxOptions{}, nil), mock, func() { db.Close() }
}

func TestTransactionCommits(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "presence" SET "is_present" = $1`)).
		WithArgs(true).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := client.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), `UPDATE "presence" SET "is_present" = $1`, true)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := client.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "explode", func() {
		_ = client.Transaction(context.Background(), func(tx *sqlx.Tx) error {
			panic("explode")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRejectsUnknownIsolationLevel(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	err := client.Transaction(context.Background(), func(tx *sqlx.Tx) error {
		return nil
	}, TxOptions{IsolationLevel: "Snapshot"})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionClassifiesCommitFailure(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

	err := client.Transaction(context.Background(), func(tx *sqlx.Tx) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrWriteConflict)
}

func TestIsolationLevelParsing(t *testing.T) {
	for _, level := range []IsolationLevel{"", ReadUncommitted, ReadCommitted, RepeatableRead, Serializable, "read committed"} {
		_, err := level.sqlLevel()
		assert.NoError(t, err, level)
	}
}

func TestQueryRawReturnsMaps(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "name" FROM "role" WHERE "id" = $1`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("admin")))

	rows, err := client.QueryRaw(context.Background(), `SELECT "name" FROM "role" WHERE "id" = $1`, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "admin", rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRawReturnsAffectedRows(t *testing.T) {
	client, mock, cleanup := newClientMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "sessions"`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := client.ExecuteRaw(context.Background(), `DELETE FROM "sessions"`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
}

func TestClientNotConnected(t *testing.T) {
	client := NewClient(configForTest(), TxOptions{}, nil)

	_, err := client.QueryRaw(context.Background(), "SELECT 1")
	assert.True(t, appErrors.IsConnection(err))
	assert.NoError(t, client.Disconnect())
}

func configForTest() config.DatabaseConfig {
	return config.DatabaseConfig{Host: "localhost", Port: 5432, Name: "test", SSLMode: "disable"}
}

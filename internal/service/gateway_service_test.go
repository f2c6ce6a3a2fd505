package service

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-presence-api/internal/repository"
	"github.com/noah-isme/sma-presence-api/pkg/database"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

func newGatewayMock(t *testing.T) (*GatewayService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := repository.NewClient(database.NewClientFromDB(sqlx.NewDb(db, "sqlmock"), database.TxOptions{}, nil), repository.Options{})
	return NewGatewayService(client, nil, nil), mock
}

func TestGatewayBatchRunsStepsInOneTransaction(t *testing.T) {
	svc, mock := newGatewayMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "presence" WHERE "lecture_id" = $1`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "presence"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))
	mock.ExpectCommit()

	results, err := svc.Batch(context.Background(), BatchRequest{
		Operations: []BatchStep{
			{Model: "presence", Operation: "deleteMany", Args: map[string]interface{}{"where": map[string]interface{}{"lecture_id": json.Number("2")}}},
			{Model: "presence", Operation: "count"},
		},
		IsolationLevel: "Serializable",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, repository.BatchResult{Count: 3}, results[0])
	assert.Equal(t, int64(4), results[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayBatchRollsBackUnknownModel(t *testing.T) {
	svc, mock := newGatewayMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Batch(context.Background(), BatchRequest{
		Operations: []BatchStep{{Model: "grades", Operation: "findMany"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayBatchValidatesRequest(t *testing.T) {
	svc, mock := newGatewayMock(t)
	ctx := context.Background()

	_, err := svc.Batch(ctx, BatchRequest{})
	assert.True(t, appErrors.IsValidation(err))

	_, err = svc.Batch(ctx, BatchRequest{
		Operations:     []BatchStep{{Model: "presence", Operation: "count"}},
		IsolationLevel: "Snapshot",
	})
	assert.True(t, appErrors.IsValidation(err))

	steps := make([]BatchStep, maxBatchOperations+1)
	for i := range steps {
		steps[i] = BatchStep{Model: "presence", Operation: "count"}
	}
	_, err = svc.Batch(ctx, BatchRequest{Operations: steps})
	assert.True(t, appErrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRequestTxOptions(t *testing.T) {
	opts := BatchRequest{MaxWait: 250, Timeout: 4000, IsolationLevel: "ReadCommitted"}.TxOptions()
	assert.Equal(t, database.IsolationLevel("ReadCommitted"), opts.IsolationLevel)
	assert.Equal(t, int64(250), opts.MaxWait.Milliseconds())
	assert.Equal(t, int64(4000), opts.Timeout.Milliseconds())
}

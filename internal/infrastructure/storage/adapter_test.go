package storage

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integrity-spine/spine/pkg/circuitbreaker"
	"github.com/integrity-spine/spine/pkg/logger"
)

func newTestAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := &Adapter{
		DB:  sqlx.NewDb(db, "sqlmock"),
		cfg: Config{MaxOpenConns: 4, AcquireTimeout: time.Second, HealthThreshold: 2 * time.Second},
		log: logger.New("error", "test"),
		sem: make(chan struct{}, 4),
	}
	a.cb = circuitbreaker.New(circuitbreaker.Config{MaxRequests: 3, Timeout: 30 * time.Second, FailureThreshold: 5})
	return a, mock
}

func TestRWTx_CommitsOnSuccess(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO widgets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := a.RWTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO widgets VALUES (1)")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRWTx_RollsBackOnError(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO widgets").WillReturnError(assertErr)
	mock.ExpectRollback()

	err := a.RWTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO widgets VALUES (1)")
		return err
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthy_NoSamplesYet_IsHealthy(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.True(t, a.Healthy())
}

func TestHealthy_AverageLatencyOverThreshold_IsUnhealthy(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.recordLatency(5 * time.Second)
	assert.False(t, a.Healthy())
}

func TestHealthy_AverageLatencyUnderThreshold_IsHealthy(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.recordLatency(10 * time.Millisecond)
	assert.True(t, a.Healthy())
}

func TestAcquire_SaturatedPool_ReturnsResourceExhausted(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.sem <- struct{}{}
	a.sem <- struct{}{}
	a.sem <- struct{}{}
	a.sem <- struct{}{}
	a.cfg.AcquireTimeout = 10 * time.Millisecond

	_, err := a.acquire(context.Background())
	require.Error(t, err)
}

func TestIsSerializationFailure_MatchesSQLState(t *testing.T) {
	assert.True(t, isSerializationFailure(errString("pq: could not serialize access due to concurrent update")))
	assert.True(t, isSerializationFailure(errString("ERROR: 40001")))
	assert.False(t, isSerializationFailure(errString("ERROR: connection refused")))
	assert.False(t, isSerializationFailure(nil))
}

func TestIsUniqueViolation_MatchesSQLState(t *testing.T) {
	assert.True(t, isUniqueViolation(errString("pq: duplicate key value violates unique constraint")))
	assert.True(t, isUniqueViolation(errString("ERROR: 23505")))
	assert.False(t, isUniqueViolation(errString("ERROR: syntax error")))
}

type errString string

func (e errString) Error() string { return string(e) }

var assertErr = errString("constraint violation")

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spineerrors "github.com/integrity-spine/spine/pkg/errors"
)

func TestRetryWithBackoff_SucceedsOnFirstAttempt(t *testing.T) {
	cfg := Config{MaxRetries: 3, BackoffBase: time.Millisecond}
	calls := 0

	tx, err, attempts := retryWithBackoff(context.Background(), cfg, func() (string, error) {
		calls++
		return "tx-hash", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "tx-hash", tx)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_RetriesOnRetryableError(t *testing.T) {
	cfg := Config{MaxRetries: 3, BackoffBase: time.Millisecond}
	calls := 0

	tx, err, attempts := retryWithBackoff(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", spineerrors.NewServiceUnavailable("ledger busy")
		}
		return "tx-hash", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "tx-hash", tx)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_DoesNotRetryPermanentFailure(t *testing.T) {
	cfg := Config{MaxRetries: 5, BackoffBase: time.Millisecond}
	calls := 0

	_, err, attempts := retryWithBackoff(context.Background(), cfg, func() (string, error) {
		calls++
		return "", spineerrors.NewValidationError("malformed payload")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ExhaustsBudgetAndReturnsLastError(t *testing.T) {
	cfg := Config{MaxRetries: 2, BackoffBase: time.Millisecond}
	calls := 0

	_, err, attempts := retryWithBackoff(context.Background(), cfg, func() (string, error) {
		calls++
		return "", spineerrors.NewServiceUnavailable("ledger down")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_ContextCancelled_StopsRetrying(t *testing.T) {
	cfg := Config{MaxRetries: 5, BackoffBase: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err, _ := retryWithBackoff(ctx, cfg, func() (string, error) {
		calls++
		return "", spineerrors.NewServiceUnavailable("ledger busy")
	})

	require.Error(t, err)
	assert.Less(t, calls, 5)
}

func TestCrosschainRoot_IsDeterministic(t *testing.T) {
	a := crosschainRoot("cardano-tx", "midnight-tx", "S1")
	b := crosschainRoot("cardano-tx", "midnight-tx", "S1")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestCrosschainRoot_DiffersByInput(t *testing.T) {
	a := crosschainRoot("cardano-tx", "midnight-tx", "S1")
	b := crosschainRoot("cardano-tx", "midnight-tx", "S2")

	assert.NotEqual(t, a, b)
}

func TestStrPtr_EmptyStringBecomesNil(t *testing.T) {
	assert.Nil(t, strPtr(""))
	require.NotNil(t, strPtr("x"))
	assert.Equal(t, "x", *strPtr("x"))
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCentsConversion(t *testing.T) {
	tests := []struct {
		amount string
		cents  int64
	}{
		{amount: "0", cents: 0},
		{amount: "455.90", cents: 45590},
		{amount: "227.95", cents: 22795},
		{amount: "0.005", cents: 1},
		{amount: "600", cents: 60000},
	}

	for _, tt := range tests {
		d := decimal.RequireFromString(tt.amount)
		assert.Equal(t, tt.cents, toCents(d), "amount %s", tt.amount)
	}

	assert.True(t, decimal.RequireFromString("455.9").Equal(fromCents(45590)))
}

func TestIsRetryable(t *testing.T) {
	serialization := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	deadlock := &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}

	assert.True(t, isRetryable(serialization))
	assert.True(t, isRetryable(fmt.Errorf("commit tx: %w", deadlock)))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryable(unique))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(ErrOrderNotFound))
	assert.False(t, isRetryable(nil))

	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, isUniqueViolation(serialization))
}

func TestWithRetry(t *testing.T) {
	r := &PostgresRepository{}

	calls := 0
	err := r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return ErrOrderNotFound
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 1, calls)

	calls = 0
	err = r.withRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, retryAttempts+1, calls)
}

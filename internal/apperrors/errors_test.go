package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := InsufficientBalance(decimal.NewFromInt(10), decimal.NewFromInt(20))

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NotErrorIs(t, err, ErrWalletFrozen)
	assert.Equal(t, "10", err.Details["available"])
	assert.Equal(t, "20", err.Details["required"])
	assert.Nil(t, ErrInsufficientBalance.Details, "sentinel must not be mutated")
}

func TestAppError_WrappedStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("withdraw: %w", ErrWalletFrozen)
	assert.ErrorIs(t, wrapped, ErrWalletFrozen)

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: connection reset")
	err := Internal(cause)

	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "transaction failed", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestInternal_PassesAppErrorThrough(t *testing.T) {
	err := Internal(fmt.Errorf("lock: %w", ErrLockTimeout))
	assert.Equal(t, "LOCK_TIMEOUT", err.Code)
	assert.True(t, err.Retryable())
}

func TestAmountExceedsLimit(t *testing.T) {
	err := AmountExceedsLimit(decimal.NewFromInt(100_000_000))
	assert.ErrorIs(t, err, ErrAmountExceedsLimit)
	assert.Equal(t, "100000000", err.Details["limit"])
	assert.False(t, err.Retryable())
}

func TestFrom_Nil(t *testing.T) {
	assert.Nil(t, From(nil))
}

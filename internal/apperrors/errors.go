// Package apperrors is the error taxonomy of the wallet ledger. Every error
// that crosses the service boundary is an *AppError; the HTTP layer renders
// Status and Code, callers match with errors.Is against the sentinels below.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so a detailed error still equals its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the caller may resubmit the same request.
func (e *AppError) Retryable() bool {
	return e.Status == http.StatusServiceUnavailable
}

// With returns a copy carrying structured details.
func (e *AppError) With(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy that keeps the cause for logs.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func newErr(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Not found.
var (
	ErrWalletNotFound        = newErr("WALLET_NOT_FOUND", "wallet not found", http.StatusNotFound)
	ErrCustomerNotFound      = newErr("CUSTOMER_NOT_FOUND", "customer not found", http.StatusNotFound)
	ErrVirtualCreditNotFound = newErr("VIRTUAL_CREDIT_NOT_FOUND", "virtual credit not found", http.StatusNotFound)
)

// Forbidden.
var (
	ErrWalletFrozen = newErr("WALLET_FROZEN", "wallet is frozen", http.StatusForbidden)
)

// Validation.
var (
	ErrInvalidAmount          = newErr("INVALID_AMOUNT", "amount must be positive with at most 2 decimal places", http.StatusBadRequest)
	ErrAmountExceedsLimit     = newErr("AMOUNT_EXCEEDS_LIMIT", "amount exceeds the per-transaction limit", http.StatusBadRequest)
	ErrDailyLimitExceeded     = newErr("DAILY_LIMIT_EXCEEDED", "daily withdraw limit exceeded", http.StatusBadRequest)
	ErrInsufficientBalance    = newErr("INSUFFICIENT_BALANCE", "insufficient balance", http.StatusBadRequest)
	ErrVirtualCreditExpired   = newErr("VIRTUAL_CREDIT_EXPIRED", "virtual credit has expired", http.StatusBadRequest)
	ErrVirtualCreditCancelled = newErr("VIRTUAL_CREDIT_CANCELLED", "virtual credit was cancelled", http.StatusBadRequest)
	ErrVirtualCreditUsed      = newErr("VIRTUAL_CREDIT_USED", "virtual credit is fully used", http.StatusBadRequest)
	ErrInvalidPhone           = newErr("INVALID_PHONE", "phone must match 0[0-9]{9,10}", http.StatusBadRequest)
	ErrInvalidRequest         = newErr("INVALID_REQUEST", "invalid request", http.StatusBadRequest)
)

// Conflict.
var (
	ErrDuplicateTransaction = newErr("DUPLICATE_TRANSACTION", "transaction was already applied", http.StatusConflict)
	ErrWalletAlreadyExists  = newErr("WALLET_ALREADY_EXISTS", "wallet already exists", http.StatusConflict)
)

// Retryable and internal.
var (
	ErrRateLimited       = newErr("RATE_LIMITED", "too many requests", http.StatusTooManyRequests)
	ErrLockTimeout       = newErr("LOCK_TIMEOUT", "wallet is busy, retry later", http.StatusServiceUnavailable)
	ErrTransactionFailed = newErr("TRANSACTION_FAILED", "transaction failed", http.StatusInternalServerError)
)

// InsufficientBalance reports what the wallet had against what was asked.
func InsufficientBalance(available, required fmt.Stringer) *AppError {
	return ErrInsufficientBalance.With(map[string]interface{}{
		"available": available.String(),
		"required":  required.String(),
	})
}

// AmountExceedsLimit carries the configured ceiling.
func AmountExceedsLimit(limit fmt.Stringer) *AppError {
	return ErrAmountExceedsLimit.With(map[string]interface{}{"limit": limit.String()})
}

// DailyLimitExceeded carries today's usage and the limit.
func DailyLimitExceeded(used, requested, limit fmt.Stringer) *AppError {
	return ErrDailyLimitExceeded.With(map[string]interface{}{
		"used":      used.String(),
		"requested": requested.String(),
		"limit":     limit.String(),
	})
}

// InvalidRequest wraps a binding or validation failure.
func InvalidRequest(message string, err error) *AppError {
	e := ErrInvalidRequest.Wrap(err)
	e.Message = message
	return e
}

// Internal translates an unexpected storage error. The cause stays in Err
// for logging and is never rendered to clients.
func Internal(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrTransactionFailed.Wrap(err)
}

// From returns the *AppError inside err, or a TransactionFailed wrapper.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	return Internal(err)
}

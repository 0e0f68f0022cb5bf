package domain

import "errors"

// ErrorCode identifies a business-rule rejection. Codes are stable and part of
// the API contract; handlers map them to HTTP statuses.
type ErrorCode string

const (
	CodeUserNotFound               ErrorCode = "USER_NOT_FOUND"
	CodeAccountNotFound            ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeUserAccountMismatch        ErrorCode = "USER_ACCOUNT_MISMATCH"
	CodeAccountClosed              ErrorCode = "ACCOUNT_CLOSED"
	CodeAmountExceedsBalance       ErrorCode = "AMOUNT_EXCEEDS_BALANCE"
	CodeTransactionNotFound        ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeTransactionAccountMismatch ErrorCode = "TRANSACTION_ACCOUNT_MISMATCH"
	CodeCancelMustBeFull           ErrorCode = "CANCEL_MUST_BE_FULL"
	CodeTooOldToCancel             ErrorCode = "TOO_OLD_TO_CANCEL"
	CodeMaxAccountsPerUser         ErrorCode = "MAX_ACCOUNTS_PER_USER"
	CodeBalanceNotEmpty            ErrorCode = "BALANCE_NOT_EMPTY"
	CodeInvalidRequest             ErrorCode = "INVALID_REQUEST"
)

// Error is a business-rule rejection. It represents a caller or data-state
// problem, never a transient fault, so callers must not retry it.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is makes errors.Is match two domain errors by code, so the canonical
// Err* values below work as comparison targets.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUserNotFound               = &Error{CodeUserNotFound, "user not found"}
	ErrAccountNotFound            = &Error{CodeAccountNotFound, "account not found"}
	ErrUserAccountMismatch        = &Error{CodeUserAccountMismatch, "account does not belong to the requesting user"}
	ErrAccountClosed              = &Error{CodeAccountClosed, "account is closed"}
	ErrAmountExceedsBalance       = &Error{CodeAmountExceedsBalance, "amount exceeds current balance"}
	ErrTransactionNotFound        = &Error{CodeTransactionNotFound, "transaction not found"}
	ErrTransactionAccountMismatch = &Error{CodeTransactionAccountMismatch, "transaction does not belong to this account"}
	ErrCancelMustBeFull           = &Error{CodeCancelMustBeFull, "partial cancellation is not allowed"}
	ErrTooOldToCancel             = &Error{CodeTooOldToCancel, "transaction is too old to cancel"}
	ErrMaxAccountsPerUser         = &Error{CodeMaxAccountsPerUser, "user already has the maximum number of accounts"}
	ErrBalanceNotEmpty            = &Error{CodeBalanceNotEmpty, "account balance must be empty"}
	ErrInvalidRequest             = &Error{CodeInvalidRequest, "invalid request"}
)

// IsBusinessError reports whether err (or anything it wraps) is a domain
// rejection rather than an unexpected failure. The distinction drives the
// failure-recording contract: only unexpected failures get an audit record.
func IsBusinessError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// CodeOf extracts the domain code from err, or "" if err is not a domain error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

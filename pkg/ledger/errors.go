package ledger

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the ledger adapter.
const (
	// ErrCodeInvalidInput indicates an argument failed validation before
	// any network round-trip.
	ErrCodeInvalidInput = "LEDGER_INVALID_INPUT"

	// ErrCodeConnectFailed indicates a node connection could not be
	// established.
	ErrCodeConnectFailed = "LEDGER_CONNECT_FAILED"

	// ErrCodeDryRunReverted indicates the dry-run detected a revert; no
	// fees were spent. The message carries the decoded contract reason.
	ErrCodeDryRunReverted = "LEDGER_DRY_RUN_REVERTED"

	// ErrCodeDispatchFailed indicates the submitted call failed on
	// chain. Fees were spent; the call is not retried.
	ErrCodeDispatchFailed = "LEDGER_DISPATCH_FAILED"

	// ErrCodeDecodeFailed indicates a wire payload could not be decoded.
	ErrCodeDecodeFailed = "LEDGER_DECODE_FAILED"

	// ErrCodeNotFound indicates the token does not exist on chain.
	ErrCodeNotFound = "LEDGER_TOKEN_NOT_FOUND"

	// ErrCodeSubmitFailed indicates submission or inclusion tracking
	// failed after signing. The outcome on chain must be checked before
	// retrying.
	ErrCodeSubmitFailed = "LEDGER_SUBMIT_FAILED"
)

// Error is a coded ledger adapter error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel errors for errors.Is checks.
var (
	ErrInvalidInput   = NewError(ErrCodeInvalidInput, "invalid input")
	ErrConnectFailed  = NewError(ErrCodeConnectFailed, "node connection failed")
	ErrDryRunReverted = NewError(ErrCodeDryRunReverted, "dry-run reverted")
	ErrDispatchFailed = NewError(ErrCodeDispatchFailed, "dispatch failed")
	ErrDecodeFailed   = NewError(ErrCodeDecodeFailed, "failed to decode wire payload")
	ErrTokenNotFound  = NewError(ErrCodeNotFound, "token not found")
	ErrSubmitFailed   = NewError(ErrCodeSubmitFailed, "submission failed")
)

// ContractError is one variant of the contract's error enum. Variant
// indices follow the contract's declaration order.
type ContractError uint8

const (
	ContractErrTokenNotFound   ContractError = 0
	ContractErrInvalidInput    ContractError = 1
	ContractErrUnauthorized    ContractError = 2
	ContractErrNotOwner        ContractError = 3
	ContractErrNotApproved     ContractError = 4
	ContractErrNotAllowed      ContractError = 5
	ContractErrPassportRevoked ContractError = 6
	ContractErrAlreadyRevoked  ContractError = 7
)

// contractErrorInfo maps contract error variants to operator-facing
// diagnostics. Decoded module errors take priority over generic revert
// messages.
var contractErrorInfo = map[ContractError]struct {
	Name        string
	Description string
}{
	ContractErrTokenNotFound:   {"TokenNotFound", "token id does not exist"},
	ContractErrInvalidInput:    {"InvalidInput", "empty dataset uri or dataset type"},
	ContractErrUnauthorized:    {"Unauthorized", "caller is not the passport issuer"},
	ContractErrNotOwner:        {"NotOwner", "caller is not the current owner"},
	ContractErrNotApproved:     {"NotApproved", "caller is not owner nor an approved operator"},
	ContractErrNotAllowed:      {"NotAllowed", "operation not allowed"},
	ContractErrPassportRevoked: {"PassportRevoked", "passport is revoked and cannot be updated"},
	ContractErrAlreadyRevoked:  {"AlreadyRevoked", "passport is already revoked"},
}

// String returns "Name: description" for a contract error variant.
func (c ContractError) String() string {
	if info, ok := contractErrorInfo[c]; ok {
		return fmt.Sprintf("%s: %s", info.Name, info.Description)
	}
	return fmt.Sprintf("unknown contract error variant %d", uint8(c))
}

// contractErr converts a decoded contract error into a coded adapter
// error. TokenNotFound gets its own code so callers can branch on it.
func contractErr(c ContractError) *Error {
	if c == ContractErrTokenNotFound {
		return NewError(ErrCodeNotFound, c.String())
	}
	return NewError(ErrCodeDryRunReverted, "contract error: "+c.String())
}

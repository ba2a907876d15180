package vc

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the credential engine. These identify the
// failure class for programmatic handling; the message carries the
// operator-facing detail.
const (
	// ErrCodeMalformed indicates the token structure is invalid.
	ErrCodeMalformed = "VC_MALFORMED"

	// ErrCodeUnsupportedKey indicates the signing key is not Ed25519 or
	// has the wrong length. Rejected before any I/O.
	ErrCodeUnsupportedKey = "VC_UNSUPPORTED_KEY"

	// ErrCodeSignatureInvalid indicates signature verification failed.
	ErrCodeSignatureInvalid = "VC_SIGNATURE_INVALID"

	// ErrCodeIssuerNotHosted indicates the issuer's DID document is not
	// yet published at its deterministic URL. Distinguished from generic
	// resolution failure because the fix is actionable: host the
	// document.
	ErrCodeIssuerNotHosted = "VC_ISSUER_NOT_HOSTED"

	// ErrCodeIssuerUnresolvable indicates the issuer identifier could
	// not be resolved to a verification key.
	ErrCodeIssuerUnresolvable = "VC_ISSUER_UNRESOLVABLE"

	// ErrCodeClaimsInvalid indicates required claims are missing or
	// malformed.
	ErrCodeClaimsInvalid = "VC_CLAIMS_INVALID"

	// ErrCodeExpired indicates current time >= exp.
	ErrCodeExpired = "VC_EXPIRED"

	// ErrCodeNotYetValid indicates current time < nbf.
	ErrCodeNotYetValid = "VC_NOT_YET_VALID"

	// ErrCodeRevoked indicates the credential's status list bit is set.
	ErrCodeRevoked = "VC_REVOKED"

	// ErrCodeStatusCheckFailed indicates the revocation state could not
	// be determined. A warning by default; a failure only when the
	// caller requires the check.
	ErrCodeStatusCheckFailed = "VC_STATUS_CHECK_FAILED"
)

// Error is a coded credential engine error.
type Error struct {
	// Code is one of the VC_* error codes.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
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
	ErrMalformed          = NewError(ErrCodeMalformed, "credential structure is invalid")
	ErrUnsupportedKey     = NewError(ErrCodeUnsupportedKey, "only Ed25519 signing keys are supported")
	ErrSignatureInvalid   = NewError(ErrCodeSignatureInvalid, "signature verification failed")
	ErrIssuerNotHosted    = NewError(ErrCodeIssuerNotHosted, "issuer DID document is not yet hosted")
	ErrIssuerUnresolvable = NewError(ErrCodeIssuerUnresolvable, "issuer could not be resolved")
	ErrClaimsInvalid      = NewError(ErrCodeClaimsInvalid, "required claims missing or malformed")
	ErrExpired            = NewError(ErrCodeExpired, "credential has expired")
	ErrNotYetValid        = NewError(ErrCodeNotYetValid, "credential is not yet valid")
	ErrRevoked            = NewError(ErrCodeRevoked, "credential has been revoked")
	ErrStatusCheckFailed  = NewError(ErrCodeStatusCheckFailed, "revocation status could not be checked")
)

// GetErrorCode extracts the error code from an Error, or returns empty
// string.
func GetErrorCode(err error) string {
	var vcErr *Error
	if errors.As(err, &vcErr) {
		return vcErr.Code
	}
	return ""
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a domain-specific error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error codes for the sync failure taxonomy. Failures are contained at the
// smallest unit that owns them (source, record, operation) and surfaced in
// the run summary; only RUN_LOCKED and STORE_IO abort a run.
const (
	CodeValidation       = "VALIDATION"
	CodeSourceFetch      = "SOURCE_FETCH"
	CodeNormalization    = "NORMALIZATION"
	CodeIdentityConflict = "IDENTITY_CONFLICT"
	CodeApplyFailed      = "APPLY_FAILED"
	CodeRunLocked        = "RUN_LOCKED"
	CodeStoreIO          = "STORE_IO"
)

func NewValidationError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewSourceFetchError(source string, cause error) *AppError {
	return &AppError{
		Code:    CodeSourceFetch,
		Message: fmt.Sprintf("source %q unavailable", source),
		Cause:   cause,
	}
}

func NewNormalizationError(source, detail string) *AppError {
	return &AppError{
		Code:    CodeNormalization,
		Message: fmt.Sprintf("source %q: %s", source, detail),
	}
}

func NewIdentityConflictError(detail string) *AppError {
	return &AppError{Code: CodeIdentityConflict, Message: detail}
}

func NewApplyError(message string, cause error) *AppError {
	return &AppError{Code: CodeApplyFailed, Message: message, Cause: cause}
}

func NewRunLockedError() *AppError {
	return &AppError{Code: CodeRunLocked, Message: "a reconciliation run is already in flight"}
}

func NewStoreError(message string, cause error) *AppError {
	return &AppError{Code: CodeStoreIO, Message: message, Cause: cause}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Package errors provides the error taxonomy of the result store and helpers
// to classify errors returned by query operations.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Caller errors, raised before any file is read.
	CodeInvalidSelector   = "INVALID_SELECTOR"
	CodeMalformedIdentity = "MALFORMED_IDENTITY"

	// Store errors.
	CodeParameterSetNotFound   = "PARAMETER_SET_NOT_FOUND"
	CodeMissingMeasurementFile = "MISSING_MEASUREMENT_FILE"
	CodeMalformedTable         = "MALFORMED_TABLE"

	CodeInternal = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit status the CLI uses for this error.
func (e *AppError) ExitCode() int {
	switch e.Code {
	case CodeInvalidSelector, CodeMalformedIdentity:
		return 2
	case CodeParameterSetNotFound, CodeMissingMeasurementFile:
		return 3
	default:
		return 1
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// InvalidSelectorError reports a missing or unusable selector dimension.
func InvalidSelectorError(message string) *AppError {
	return New(CodeInvalidSelector, message)
}

// MalformedIdentityError reports a registration identity that cannot be decoded.
func MalformedIdentityError(id string) *AppError {
	return New(CodeMalformedIdentity, fmt.Sprintf("cannot decode registration identity %q", id)).
		WithDetail("regid", id)
}

// ParameterSetNotFoundError reports that no parameter CSV exists on the search path.
func ParameterSetNotFoundError(dataset, regid string) *AppError {
	return New(CodeParameterSetNotFound, fmt.Sprintf("no parameter set for %s on dataset %s", regid, dataset)).
		WithDetail("dataset", dataset).
		WithDetail("regid", regid)
}

// MissingMeasurementFileError reports an absent per-case measurement file.
func MissingMeasurementFileError(path string) *AppError {
	return New(CodeMissingMeasurementFile, "measurement file not found").
		WithDetail("path", path)
}

// MalformedTableError reports a CSV file that cannot be decoded.
func MalformedTableError(path string, err error) *AppError {
	return Wrap(CodeMalformedTable, fmt.Sprintf("cannot read table %s", path), err).
		WithDetail("path", path)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsInvalidSelector checks if error is an invalid selector error.
func IsInvalidSelector(err error) bool {
	return CodeOf(err) == CodeInvalidSelector
}

// IsMalformedIdentity checks if error is a malformed identity error.
func IsMalformedIdentity(err error) bool {
	return CodeOf(err) == CodeMalformedIdentity
}

// IsParameterSetNotFound checks if error is a parameter set not found error.
func IsParameterSetNotFound(err error) bool {
	return CodeOf(err) == CodeParameterSetNotFound
}

// IsMissingMeasurementFile checks if error is a missing measurement file error.
func IsMissingMeasurementFile(err error) bool {
	return CodeOf(err) == CodeMissingMeasurementFile
}

// ExitCode returns the CLI exit status for any error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return 1
}

package models

import (
	"errors"
	"fmt"
)

// Error codes used in reports and internal error handling.
const (
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodePreconditionTimeout = "PRECONDITION_TIMEOUT"
	ErrCodePaginationAnomaly   = "PAGINATION_ANOMALY"
	ErrCodeAssertion           = "ASSERTION_FAILED"
	ErrCodeMalformedData       = "MALFORMED_DATA"
	ErrCodeBrowser             = "BROWSER_ERROR"
)

// VerifyError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type VerifyError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// NewVerifyError creates a new VerifyError.
func NewVerifyError(code, message string, err error) *VerifyError {
	return &VerifyError{Code: code, Message: message, Err: err}
}

// ConfigError is shorthand for a CONFIGURATION_ERROR without a cause.
func ConfigError(format string, args ...any) *VerifyError {
	return NewVerifyError(ErrCodeConfiguration, fmt.Sprintf(format, args...), nil)
}

// CodeOf returns the code of the first VerifyError in err's chain, or "".
func CodeOf(err error) string {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// ToFailure converts an error into a recorded failure for the given page
// (0 when the failure is not tied to a results page).
func ToFailure(err error, page int) Failure {
	code := CodeOf(err)
	if code == "" {
		code = ErrCodeBrowser
	}
	return Failure{Code: code, Message: err.Error(), Page: page}
}

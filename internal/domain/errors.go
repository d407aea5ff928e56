package domain

import "errors"

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// Record input errors
	ErrEmptyDescription   = errors.New("description cannot be empty")
	ErrDescriptionTooLong = errors.New("description is too long")
	ErrMissingValue       = errors.New("value is required")
	ErrInvalidValue       = errors.New("value must be a number")
	ErrNegativeValue      = errors.New("value cannot be negative")
	ErrValueTooLarge      = errors.New("value exceeds maximum allowed")
	ErrValuePrecision     = errors.New("value has too many decimal places")

	// Record errors
	ErrRecordNotFound = errors.New("record not found")
	ErrNoEditSession  = errors.New("no record is being edited")
	ErrNoIdentity     = errors.New("no signed-in identity")

	// ErrPersistence wraps failures reported by the persistence collaborator.
	ErrPersistence = errors.New("persistence failure")

	// ErrTransient marks collaborator failures that are safe to retry.
	ErrTransient = errors.New("transient failure")
)

// ValidationError reports input rejected before any persistence call.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError wraps err as a validation failure on field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports ErrValidation as a match so callers can test the whole family.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound      = errors.New("resource not found")
	ErrBatchNotFound = fmt.Errorf("%w: batch", ErrNotFound)

	// Scoring errors abort the batch
	ErrSchemaMismatch        = errors.New("schema mismatch")
	ErrProbabilityOutOfRange = errors.New("model probability out of range")
	ErrEmptyDataset          = errors.New("dataset has no records")

	// Query and insight errors degrade to safe defaults
	ErrTranslation        = errors.New("filter translation failed")
	ErrInsightUnavailable = errors.New("insight unavailable")
)

// SchemaMismatchError identifies the record and attribute that broke the model contract.
// EmployeeID is empty when the record carried no identifier.
type SchemaMismatchError struct {
	Attribute  string
	EmployeeID string
	Index      int
	Reason     string
}

func (e *SchemaMismatchError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing required attribute"
	}
	if e.EmployeeID != "" {
		return fmt.Sprintf("%s: %s %q for employee %s", ErrSchemaMismatch, reason, e.Attribute, e.EmployeeID)
	}
	return fmt.Sprintf("%s: %s %q at row %d", ErrSchemaMismatch, reason, e.Attribute, e.Index)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// TranslationError reports why a model response could not become a filter.
type TranslationError struct {
	Reason string
	Cause  error
}

func (e *TranslationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrTranslation, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrTranslation, e.Reason)
}

func (e *TranslationError) Unwrap() error { return e.Cause }

func (e *TranslationError) Is(target error) bool {
	return target == ErrTranslation
}

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewTranslationError(reason string, cause error) error {
	return &TranslationError{Reason: reason, Cause: cause}
}

func NewInsightUnavailableError(cause error) error {
	return fmt.Errorf("%w: %v", ErrInsightUnavailable, cause)
}

func NewProbabilityError(employeeID string, p float64) error {
	return fmt.Errorf("%w: employee %s got %v", ErrProbabilityOutOfRange, employeeID, p)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsScoringError(err error) bool {
	return errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrProbabilityOutOfRange) ||
		errors.Is(err, ErrEmptyDataset)
}

func IsTranslationError(err error) bool {
	return errors.Is(err, ErrTranslation)
}

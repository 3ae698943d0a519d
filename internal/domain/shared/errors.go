// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// Storage errors
	ErrStorage = errors.New("storage error")

	// Transient errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "gamification", "outcome", "notification"
	Op      string // Operation that failed, e.g., "AwardXP", "RollUp"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Gamification domain errors
var (
	ErrEmptyStudentID = NewDomainError("gamification", "Validate", ErrEmptyValue, "student_id is required")
	ErrInvalidSource  = NewDomainError("gamification", "Validate", ErrInvalidInput, "source is not a known XP source")
	ErrStateNotFound  = NewDomainError("gamification", "FindState", ErrNotFound, "gamification state not found")
)

// Outcome domain errors
var (
	ErrGradeNotFound      = NewDomainError("outcome", "FindGrade", ErrNotFound, "grade not found")
	ErrSubmissionNotFound = NewDomainError("outcome", "FindSubmission", ErrNotFound, "submission not found")
	ErrAssignmentNotFound = NewDomainError("outcome", "FindAssignment", ErrNotFound, "assignment not found")
	ErrOutcomeNotFound    = NewDomainError("outcome", "FindOutcome", ErrNotFound, "outcome not found")
	ErrEmptyGradeID       = NewDomainError("outcome", "Validate", ErrEmptyValue, "grade_id is required")
	ErrEmptySubmissionID  = NewDomainError("outcome", "Validate", ErrEmptyValue, "submission_id is required")
	ErrDuplicateEvidence  = NewDomainError("outcome", "InsertEvidence", ErrAlreadyExists, "evidence already recorded for grade and outcome")
)

// Notification domain errors
var (
	ErrInvalidNotification = NewDomainError("notification", "Validate", ErrInvalidInput, "invalid notification")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStorage checks if the error came from the durable store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStorage)
}

// Storage wraps a store failure with domain context.
func Storage(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	return WrapError(domain, op, ErrStorage, "storage failure", err)
}

// Validation builds a validation error with a custom message.
func Validation(domain, op, message string) error {
	return NewDomainError(domain, op, ErrValidation, message)
}

// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDimensionMismatch  = errors.New("state dimension mismatch")
	ErrUnknownPreset      = errors.New("unknown initial-condition preset")
	ErrUnknownAttractor   = errors.New("unknown attractor kind")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrInvalidSize        = errors.New("trade size must be positive")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrMalformedAttribute = errors.New("malformed attribute")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDataNotFound       = errors.New("data not found")
	ErrDatabaseError      = errors.New("database error")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError. The sentinel err, when
// non-nil, is reachable through errors.Is.
func NewValidationError(field string, value interface{}, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// ScoringError reports an attribute that could not be used while scoring an entity.
type ScoringError struct {
	EntityID  string
	Attribute string
	Err       error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring error [%s] %s: %v", e.EntityID, e.Attribute, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// NewScoringError creates a new ScoringError.
func NewScoringError(entityID, attribute string, err error) *ScoringError {
	return &ScoringError{
		EntityID:  entityID,
		Attribute: attribute,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents an error occurring during input validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// SchemaError reports a required input column or payload field that is
// absent or holds an invalid value at a decode boundary. Schema problems
// are unrecoverable for the run: they abort before any partial output is
// produced.
type SchemaError struct {
	Source string
	Column string
	// Detail describes an invalid value; empty means the column is absent.
	Detail string
}

// Error returns the error message string.
func (e *SchemaError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s %s", e.Source, e.Column, e.Detail)
	}
	return fmt.Sprintf("%s: required column %q is absent", e.Source, e.Column)
}

// NewSchemaError creates a new SchemaError for a missing column.
//
// Parameters:
//   - source: The series or payload the column was expected in.
//   - column: The missing column name.
//
// Returns:
//   - An error interface wrapping the SchemaError.
func NewSchemaError(source, column string) error {
	return &SchemaError{
		Source: source,
		Column: column,
	}
}

// NewSchemaValueError creates a new SchemaError for a column that is
// present but holds an invalid value.
func NewSchemaValueError(source, column, detail string) error {
	return &SchemaError{
		Source: source,
		Column: column,
		Detail: detail,
	}
}

// IsSchemaError reports whether err wraps a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// NotFoundError represents a lookup for a record that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error returns the error message string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError for a resource and id.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// IsNotFoundError reports whether err wraps a NotFoundError.
func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

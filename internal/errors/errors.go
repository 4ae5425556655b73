// Package errors provides a lightweight structured error type (BuildError)
// for category-based classification of build failures in the CLI.
package errors

import (
	"fmt"
)

// Category classifies a build error for reporting and exit behavior.
type Category string

const (
	// User-facing configuration and input errors
	CategoryConfig     Category = "config"
	CategoryValidation Category = "validation"

	// External collaborator errors
	CategoryCollaborator Category = "collaborator"

	// Build and processing errors
	CategoryTransform  Category = "transform"
	CategoryFileSystem Category = "filesystem"
	CategoryData       Category = "data"

	// Runtime and infrastructure errors
	CategoryInternal Category = "internal"
)

// Severity indicates how an error affects the running build.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops the run
	SeverityWarning Severity = "warning" // Continues with degraded output
)

// BuildError is a structured error with category, severity, and context.
type BuildError struct {
	Category Category      `json:"category"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for BuildError
type ContextFields map[string]any

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *BuildError) WithContext(key string, value any) *BuildError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new BuildError
func New(category Category, severity Severity, message string) *BuildError {
	return &BuildError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new BuildError that wraps an existing error
func Wrap(err error, category Category, severity Severity, message string) *BuildError {
	return &BuildError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// Fatal creates a new fatal BuildError
func Fatal(category Category, message string) *BuildError {
	return New(category, SeverityFatal, message)
}

// Warning creates a new warning-severity BuildError
func Warning(category Category, message string) *BuildError {
	return New(category, SeverityWarning, message)
}

// WrapFatal wraps an existing error as a fatal BuildError
func WrapFatal(err error, category Category, message string) *BuildError {
	return Wrap(err, category, SeverityFatal, message)
}

// WrapWarning wraps an existing error as a warning-severity BuildError
func WrapWarning(err error, category Category, message string) *BuildError {
	return Wrap(err, category, SeverityWarning, message)
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category Category) bool {
	if be, ok := err.(*BuildError); ok {
		return be.Category == category
	}
	return false
}

// IsFatal reports whether an error should abort the run. Unclassified errors
// are treated as fatal.
func IsFatal(err error) bool {
	if be, ok := err.(*BuildError); ok {
		return be.Severity == SeverityFatal
	}
	return err != nil
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if it is not a BuildError
func GetCategory(err error) Category {
	if be, ok := err.(*BuildError); ok {
		return be.Category
	}
	return CategoryInternal
}

package livetree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrRuntimeClosed is returned by operations on a runtime after Close.
	ErrRuntimeClosed = errors.New("livetree: runtime closed")

	// ErrNotBuilt is returned when rendering work is requested before Rebuild.
	ErrNotBuilt = errors.New("livetree: runtime has not been rebuilt")

	// ErrAlreadyBuilt is returned by a second call to Rebuild.
	ErrAlreadyBuilt = errors.New("livetree: runtime already rebuilt")

	// ErrScopeNotFound is returned when a scope id does not name a live scope.
	ErrScopeNotFound = errors.New("livetree: scope not found")

	// ErrElementNotFound is returned when an event targets an element that is
	// no longer mounted.
	ErrElementNotFound = errors.New("livetree: element not mounted")

	// ErrTaskNotFound is returned by CancelTask for unknown or finished tasks.
	ErrTaskNotFound = errors.New("livetree: task not found")

	// ErrInvalidLane is returned when parsing an unknown lane name.
	ErrInvalidLane = errors.New("livetree: invalid lane")
)

// ContractViolation is the panic value raised when calling code breaks a
// structural rule of the runtime: duplicate or missing keys in a keyed
// sibling group, hook order drift between renders, or a malformed template.
// These are never recovered by the render guard.
type ContractViolation struct {
	Rule   string
	Detail string
}

func (c *ContractViolation) Error() string {
	return fmt.Sprintf("livetree: contract violation (%s): %s", c.Rule, c.Detail)
}

func violate(rule, format string, args ...any) {
	panic(&ContractViolation{Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

// RenderError describes a component render that panicked. The runtime logs
// it and keeps the scope's previous tree.
type RenderError struct {
	Component string
	Scope     ScopeID
	Value     any
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("component %s (scope %d) panicked: %v", e.Component, e.Scope, e.Value)
}

// FieldError represents a validation error for a specific config field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError is a collection of field errors (implements error interface)
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationToMultiError converts go-playground/validator errors to MultiError
func ValidationToMultiError(err error) MultiError {
	var fieldErrors MultiError

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fieldErrors
	}

	for _, e := range validationErrs {
		fieldName := strings.ToLower(e.Field())

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", e.Field())
		case "min", "gte":
			message = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "max", "lte":
			message = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
		default:
			message = fmt.Sprintf("%s is invalid", e.Field())
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldName,
			Message: message,
		})
	}

	return fieldErrors
}

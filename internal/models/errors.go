package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed required field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a lookup that yielded nothing
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IntegrationFailure wraps an error from an external collaborator (mail, gateway)
type IntegrationFailure struct {
	Collaborator string
	Err          error
}

func (e *IntegrationFailure) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Collaborator, e.Err)
}

func (e *IntegrationFailure) Unwrap() error { return e.Err }

// Required returns a ValidationError for an absent field
func Required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsIntegration(err error) bool {
	var inf *IntegrationFailure
	return errors.As(err, &inf)
}

// ConflictError reports a request that collides with one still in progress
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

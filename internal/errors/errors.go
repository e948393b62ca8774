package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFoundError represents an error when a remote record does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Entity)
}

// Is enables errors.Is() comparison for NotFoundError. The ID is ignored so
// that a lookup error matches the entity sentinel.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return t.Entity == "" || e.Entity == t.Entity
}

// TransportError represents a network or service failure while talking to a
// remote service
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport error"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError represents a rejected input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ConfigurationError represents configuration-related errors
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Entity Not Found Errors
var (
	ErrTeamCoachNotFound = &NotFoundError{Entity: "team coach"}
	ErrTeamNotFound      = &NotFoundError{Entity: "team"}
	ErrPokemonNotFound   = &NotFoundError{Entity: "pokemon"}
)

// Roster Errors
var (
	ErrRosterFull    = &ValidationError{Field: "pokemonIds", Message: "team roster is full"}
	ErrTeamNotLinked = &ValidationError{Field: "teamId", Message: "team does not belong to this coach"}
	ErrEmptyTeamName = &ValidationError{Field: "name", Message: "team name is required"}
	ErrInvalidID     = &ValidationError{Field: "id", Message: "invalid identifier"}
)

// Helper Functions

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsTransport checks if an error is a TransportError
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsConflict checks if an error is a TransportError carrying 409 Conflict,
// the answer of a service asked to create a record that already exists
func IsConflict(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusConflict
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// NotFound builds a NotFoundError for a specific record
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

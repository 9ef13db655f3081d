package service

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Handlers map them to HTTP status codes.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service error")
)

// ValidationError is a bad shape or range on one field.
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

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity and its id.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v no encontrado", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError refuses a mutation of frozen state.
type ConflictError struct {
	Entity string
	ID     any
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Entity, e.ID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ExternalServiceError wraps a POS failure.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("pos %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause (e.g. infra.ErrCircuitOpen).
func (e *ExternalServiceError) Unwrap() []error { return []error{ErrExternalService, e.Err} }

func invalido(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

func noEncontrado(entity string, id any) error { return &NotFoundError{Entity: entity, ID: id} }

func conflicto(entity string, id any, reason string) error {
	return &ConflictError{Entity: entity, ID: id, Reason: reason}
}

func externo(op string, err error) error { return &ExternalServiceError{Op: op, Err: err} }

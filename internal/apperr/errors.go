// Package apperr defines the error taxonomy shared across the service.
// Errors are matched with errors.As, so helpers keep working when callers
// wrap them with fmt.Errorf("...: %w", err).
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError indicates rejected user input
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

// ConfigurationError indicates a missing or invalid process-wide setting
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing %s configuration", e.Setting)
}

func NewConfigurationError(setting string) error {
	return &ConfigurationError{Setting: setting}
}

func IsConfigurationError(err error) bool {
	var t *ConfigurationError
	return errors.As(err, &t)
}

// ConflictError indicates an operation disallowed by the record's current state
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func NewConflictError(msg string) error {
	return &ConflictError{Msg: msg}
}

func IsConflictError(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

// NotFoundError indicates an unknown record id
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("upload not found: %s", e.ID)
}

func NewNotFoundError(id string) error {
	return &NotFoundError{ID: id}
}

func IsNotFoundError(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

// StorageError indicates a persistence backend failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func IsStorageError(err error) bool {
	var t *StorageError
	return errors.As(err, &t)
}

// RemoteAPIError indicates a non-success result from the remote platform
type RemoteAPIError struct {
	Msg string
}

func (e *RemoteAPIError) Error() string { return e.Msg }

func NewRemoteAPIError(msg string) error {
	return &RemoteAPIError{Msg: msg}
}

func IsRemoteAPIError(err error) bool {
	var t *RemoteAPIError
	return errors.As(err, &t)
}

// RemoteTimeoutError indicates that polling exhausted all attempts without
// the remote platform reaching a terminal processing state
type RemoteTimeoutError struct {
	Attempts int
}

func (e *RemoteTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for video processing after %d attempts", e.Attempts)
}

func NewRemoteTimeoutError(attempts int) error {
	return &RemoteTimeoutError{Attempts: attempts}
}

func IsRemoteTimeoutError(err error) bool {
	var t *RemoteTimeoutError
	return errors.As(err, &t)
}

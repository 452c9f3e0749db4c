package domain

import "errors"

var (
	// ErrNotFound is returned when a project or task is missing or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks user input that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotDelivered is returned by notifiers when no recipient endpoint accepted a message.
	ErrNotDelivered = errors.New("message not delivered")
)

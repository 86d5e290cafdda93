package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidEpisodeStatus is returned when an episode status is not valid.
	ErrInvalidEpisodeStatus = errors.New("invalid episode status")

	// ErrInvalidStatusTransition is returned when a status change would skip
	// or reverse a step of the episode lifecycle.
	ErrInvalidStatusTransition = errors.New("invalid episode status transition")
)

package leads

import "errors"

var (
	// ErrInvalidName rejects missing or oversized names.
	ErrInvalidName = errors.New("leads: nome is required and must be at most 255 characters")

	// ErrInvalidEmail rejects malformed or oversized emails.
	ErrInvalidEmail = errors.New("leads: a valid email is required")

	// ErrFeedbackTooLong rejects feedback above the form limit.
	ErrFeedbackTooLong = errors.New("leads: feedback must be at most 5000 characters")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("leads: lead not found")
)

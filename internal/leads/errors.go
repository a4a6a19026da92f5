package leads

import "errors"

var (
	// ErrInvalidName is returned when the name is missing
	ErrInvalidName = errors.New("name is required")

	// ErrInvalidEmail is returned when the email is missing or malformed
	ErrInvalidEmail = errors.New("a valid email is required")

	// ErrMessageTooLong is returned when the message exceeds MaxMessageLength
	ErrMessageTooLong = errors.New("message is too long")

	// ErrContactNotFound is returned when a contact message is not found
	ErrContactNotFound = errors.New("contact message not found")
)

package conversation

import "errors"

var (
	// ErrBackendUnavailable is returned when the chat backend fails or times out.
	ErrBackendUnavailable = errors.New("conversation: chat backend unavailable")

	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("conversation: session not found")

	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("conversation: message is empty")
)

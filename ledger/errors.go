package ledger

import "errors"

var (
	// ErrInvalidPayload is returned for empty or oversized payloads.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownBackend is returned by NewStore for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown ledger backend")
)

package protocol

import (
	"errors"
	"fmt"
)

// ErrConfig is the parent of every configuration error. Configuration errors
// are reported before any channel state is mutated.
var ErrConfig = errors.New("channel config")

var (
	ErrInvalidMode      = fmt.Errorf("%w: invalid mode", ErrConfig)
	ErrMissingKey       = fmt.Errorf("%w: restricted mode requires a side key", ErrConfig)
	ErrInvalidKey       = fmt.Errorf("%w: invalid side key", ErrConfig)
	ErrInvalidSecurity  = fmt.Errorf("%w: invalid security level", ErrConfig)
	ErrInvalidEpochSize = fmt.Errorf("%w: invalid epoch size", ErrConfig)
)

var (
	// ErrMalformedPayload reports structurally invalid payload bytes.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrSignatureInvalid reports a payload that does not authenticate against
	// the claimed root. Wrong keys, wrong roots and corrupted data are
	// deliberately indistinguishable.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrTransport wraps failures of the ledger transport.
	ErrTransport = errors.New("transport error")

	// ErrNotFound is returned by transports when no payload is stored at an
	// address. For a reader this is the end of the published chain.
	ErrNotFound = errors.New("no payload at address")

	// ErrKeyExhausted is returned when no unused leaf can be allocated.
	ErrKeyExhausted = errors.New("leaf keys exhausted")

	// ErrTreeBuild is returned when an authentication tree cannot be built
	// from the channel parameters.
	ErrTreeBuild = errors.New("tree build failed")
)

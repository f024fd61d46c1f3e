package protocol

import (
	"context"

	"github.com/flashbots/mamchan/crypto"
)

// Transport is the ledger a channel is attached to. The ledger is an
// address-indexed, append-only log: every address holds the payloads
// published to it in arrival order.
type Transport interface {
	// Publish appends payload at address. Publishing an identical payload
	// twice is harmless, so callers may retry.
	Publish(ctx context.Context, address crypto.Hash, payload []byte) error

	// Fetch returns every payload stored at address, oldest first, or
	// ErrNotFound when there is none.
	Fetch(ctx context.Context, address crypto.Hash) ([][]byte, error)
}

package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
	"golang.org/x/crypto/sha3"
)

// MaxPayloadSize is the largest payload a ledger accepts.
const MaxPayloadSize = 1 << 20

// Store is an address-indexed append-only payload log.
//
// Append stores payload at address and reports whether it was new. Appending
// a payload already stored at the address is a no-op. Load returns the
// payloads at address in append order, or protocol.ErrNotFound.
type Store interface {
	Append(ctx context.Context, address crypto.Hash, payload []byte) (bool, error)
	Load(ctx context.Context, address crypto.Hash) ([][]byte, error)
	Close() error
}

// StoreTransport exposes a Store as an in-process protocol.Transport.
type StoreTransport struct {
	Store Store
}

var _ protocol.Transport = (*StoreTransport)(nil)

// Publish appends payload at address.
func (t *StoreTransport) Publish(ctx context.Context, address crypto.Hash, payload []byte) error {
	_, err := t.Store.Append(ctx, address, payload)
	return err
}

// Fetch loads the payloads at address.
func (t *StoreTransport) Fetch(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	return t.Store.Load(ctx, address)
}

func payloadDigest(payload []byte) [32]byte {
	return sha3.Sum256(payload)
}

func checkPayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPayload, len(payload), MaxPayloadSize)
	}
	return nil
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[crypto.Hash][][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[crypto.Hash][][]byte)}
}

// Append stores a copy of payload.
func (s *MemoryStore) Append(ctx context.Context, address crypto.Hash, payload []byte) (bool, error) {
	if err := checkPayload(payload); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.payloads[address] {
		if bytes.Equal(stored, payload) {
			return false, nil
		}
	}
	s.payloads[address] = append(s.payloads[address], bytes.Clone(payload))
	return true, nil
}

// Load returns copies of the payloads at address.
func (s *MemoryStore) Load(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.payloads[address]
	if !ok {
		return nil, protocol.ErrNotFound
	}
	out := make([][]byte, len(stored))
	for i := range stored {
		out[i] = bytes.Clone(stored[i])
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

package protocol

import (
	"bytes"
	"context"
	"sync"

	"github.com/flashbots/mamchan/crypto"
)

// memTransport is a minimal append-only ledger for tests.
type memTransport struct {
	mu       sync.Mutex
	payloads map[crypto.Hash][][]byte
	fetchErr error
	fetches  int
}

func newMemTransport() *memTransport {
	return &memTransport{payloads: make(map[crypto.Hash][][]byte)}
}

func (m *memTransport) Publish(ctx context.Context, address crypto.Hash, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payloads[address] {
		if bytes.Equal(p, payload) {
			return nil
		}
	}
	m.payloads[address] = append(m.payloads[address], bytes.Clone(payload))
	return nil
}

func (m *memTransport) Fetch(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	stored, ok := m.payloads[address]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([][]byte, len(stored))
	for i := range stored {
		out[i] = bytes.Clone(stored[i])
	}
	return out, nil
}

func (m *memTransport) put(address crypto.Hash, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[address] = append(m.payloads[address], payload)
}

func (m *memTransport) setFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func testSeed(label string) *crypto.Seed {
	s := crypto.SeedFromPassphrase(label)
	return &s
}

func testChannel(label string, security int, epochSize uint32) *Channel {
	ch, err := NewChannel(&ChannelConfig{Security: security, EpochSize: epochSize, Seed: testSeed(label)})
	if err != nil {
		panic(err)
	}
	return ch
}

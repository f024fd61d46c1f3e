package testutil

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
)

// =====================================
// Channel Generators
// =====================================

// ChannelOption modifies a ChannelConfig.
type ChannelOption func(*protocol.ChannelConfig)

// WithSecurity sets the signature security level.
func WithSecurity(security int) ChannelOption {
	return func(cfg *protocol.ChannelConfig) {
		cfg.Security = security
	}
}

// WithEpochSize sets the size of the first epoch.
func WithEpochSize(size uint32) ChannelOption {
	return func(cfg *protocol.ChannelConfig) {
		cfg.EpochSize = size
	}
}

// WithGrowth sets the epoch growth policy.
func WithGrowth(growth protocol.GrowthPolicy) ChannelOption {
	return func(cfg *protocol.ChannelConfig) {
		cfg.Growth = growth
	}
}

// WithSeedPassphrase derives the channel seed from a passphrase.
func WithSeedPassphrase(passphrase string) ChannelOption {
	return func(cfg *protocol.ChannelConfig) {
		seed := crypto.SeedFromPassphrase(passphrase)
		cfg.Seed = &seed
	}
}

// NewTestChannelConfig returns a small, fast configuration: security 1, one
// leaf per epoch and a fixed seed.
func NewTestChannelConfig(options ...ChannelOption) *protocol.ChannelConfig {
	seed := crypto.SeedFromPassphrase("testutil")
	cfg := &protocol.ChannelConfig{
		Security:  1,
		EpochSize: 1,
		Seed:      &seed,
	}
	for _, option := range options {
		option(cfg)
	}
	return cfg
}

// NewTestChannel creates a channel from NewTestChannelConfig.
func NewTestChannel(options ...ChannelOption) (*protocol.Channel, error) {
	return protocol.NewChannel(NewTestChannelConfig(options...))
}

// =====================================
// Key Generators
// =====================================

// GenerateRandomBytes returns n random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustSideKey pads text into a side key and panics if it does not fit.
func MustSideKey(text string) crypto.SideKey {
	key, err := crypto.NewSideKeyFromString(text)
	if err != nil {
		panic(fmt.Sprintf("side key %q: %v", text, err))
	}
	return key
}

// GenerateTestSideKey returns a random side key.
func GenerateTestSideKey() (crypto.SideKey, error) {
	b, err := GenerateRandomBytes(crypto.SideKeySize)
	if err != nil {
		return crypto.SideKey{}, err
	}
	return crypto.NewSideKey(b)
}

// =====================================
// Transports
// =====================================

// ErrInjected is returned by FlakyTransport for injected failures.
var ErrInjected = errors.New("injected transport failure")

// RecordingTransport records the addresses published to and fetched from
// the wrapped transport.
type RecordingTransport struct {
	protocol.Transport

	mu        sync.Mutex
	published []crypto.Hash
	fetched   []crypto.Hash
}

// NewRecordingTransport wraps inner.
func NewRecordingTransport(inner protocol.Transport) *RecordingTransport {
	return &RecordingTransport{Transport: inner}
}

func (r *RecordingTransport) Publish(ctx context.Context, address crypto.Hash, payload []byte) error {
	r.mu.Lock()
	r.published = append(r.published, address)
	r.mu.Unlock()
	return r.Transport.Publish(ctx, address, payload)
}

func (r *RecordingTransport) Fetch(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	r.mu.Lock()
	r.fetched = append(r.fetched, address)
	r.mu.Unlock()
	return r.Transport.Fetch(ctx, address)
}

// Published returns the addresses published to, in call order.
func (r *RecordingTransport) Published() []crypto.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]crypto.Hash(nil), r.published...)
}

// Fetched returns the addresses fetched, in call order.
func (r *RecordingTransport) Fetched() []crypto.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]crypto.Hash(nil), r.fetched...)
}

// FlakyTransport fails calls with ErrInjected while failures remain, then
// passes them to the wrapped transport.
type FlakyTransport struct {
	protocol.Transport

	mu              sync.Mutex
	publishFailures int
	fetchFailures   int
}

// NewFlakyTransport wraps inner, failing the first publishFailures publishes
// and the first fetchFailures fetches. A negative count fails every call.
func NewFlakyTransport(inner protocol.Transport, publishFailures, fetchFailures int) *FlakyTransport {
	return &FlakyTransport{
		Transport:       inner,
		publishFailures: publishFailures,
		fetchFailures:   fetchFailures,
	}
}

func (f *FlakyTransport) Publish(ctx context.Context, address crypto.Hash, payload []byte) error {
	if f.take(&f.publishFailures) {
		return ErrInjected
	}
	return f.Transport.Publish(ctx, address, payload)
}

func (f *FlakyTransport) Fetch(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	if f.take(&f.fetchFailures) {
		return nil, ErrInjected
	}
	return f.Transport.Fetch(ctx, address)
}

func (f *FlakyTransport) take(remaining *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case *remaining < 0:
		return true
	case *remaining > 0:
		*remaining--
		return true
	}
	return false
}

package protocol

import (
	"fmt"
	"math"
	"sync"

	"github.com/flashbots/mamchan/crypto"
)

// ChannelState is the publisher-side bookkeeping of a channel.
type ChannelState struct {
	Mode Mode `json:"mode"`

	// SideKey is the masking key of non-public modes. Zero means none.
	SideKey crypto.SideKey `json:"-"`

	Security int `json:"security"`

	// Start is the global leaf index of the current epoch's first leaf.
	Start uint64 `json:"start"`

	// Count is the number of leaves in the current epoch.
	Count uint32 `json:"count"`

	// NextCount is the size of the epoch after the current one.
	NextCount uint32 `json:"next_count"`

	// Index is the offset of the next unused leaf within the current epoch.
	Index uint32 `json:"index"`

	// NextRoot is the forward pointer embedded in the last encoded message.
	NextRoot crypto.Hash `json:"next_root"`
}

// AtEpochStart reports whether no leaf of the current epoch is used yet.
func (s ChannelState) AtEpochStart() bool {
	return s.Index == 0
}

// LeafIndex returns the global index of the next unused leaf.
func (s ChannelState) LeafIndex() uint64 {
	return s.Start + uint64(s.Index)
}

// advanced returns the state after consuming the leaf at Index.
func (s ChannelState) advanced(policy GrowthPolicy) (ChannelState, error) {
	if s.Index+1 < s.Count {
		s.Index++
		return s, nil
	}

	if s.Start > math.MaxUint64-uint64(s.Count) {
		return s, fmt.Errorf("%w: leaf index space exhausted", ErrKeyExhausted)
	}
	start := s.Start + uint64(s.Count)

	following := policy.NextCount(s.NextCount)
	if following == 0 || following > MaxEpochSize {
		return s, fmt.Errorf("%w: growth policy returned epoch size %d", ErrKeyExhausted, following)
	}
	if start > math.MaxUint64-uint64(s.NextCount) {
		return s, fmt.Errorf("%w: leaf index space exhausted", ErrKeyExhausted)
	}

	s.Start = start
	s.Count = s.NextCount
	s.NextCount = following
	s.Index = 0
	return s, nil
}

// Channel is a publisher's handle on one message chain. Encode calls on a
// Channel are serialized.
type Channel struct {
	mu     sync.Mutex
	seed   crypto.Seed
	state  ChannelState
	growth GrowthPolicy

	current *AuthenticationTree
	next    *AuthenticationTree
}

// NewChannel creates a public channel at global leaf 0. A fresh seed is
// generated unless the config carries one.
func NewChannel(cfg *ChannelConfig) (*Channel, error) {
	if cfg == nil {
		cfg = DefaultChannelConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var seed crypto.Seed
	if cfg.Seed != nil {
		seed = *cfg.Seed
	} else {
		var err error
		if seed, err = crypto.GenerateSeed(); err != nil {
			return nil, err
		}
	}

	return &Channel{
		seed: seed,
		state: ChannelState{
			Mode:      Public,
			Security:  cfg.Security,
			Start:     0,
			Count:     cfg.EpochSize,
			NextCount: cfg.EpochSize,
			Index:     0,
		},
		growth: cfg.growthPolicy(),
	}, nil
}

// RestoreChannel resumes a channel from a previously saved state.
// Restoring an older state than the latest one reuses leaves.
func RestoreChannel(seed crypto.Seed, state ChannelState, growth GrowthPolicy) (*Channel, error) {
	if !state.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(state.Mode))
	}
	if state.Mode == Restricted && state.SideKey.IsZero() {
		return nil, ErrMissingKey
	}
	if !crypto.ValidSecurity(state.Security) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSecurity, state.Security)
	}
	if state.Count == 0 || state.Count > MaxEpochSize || state.NextCount == 0 || state.NextCount > MaxEpochSize {
		return nil, fmt.Errorf("%w: count %d next %d", ErrInvalidEpochSize, state.Count, state.NextCount)
	}
	if state.Index >= state.Count {
		return nil, fmt.Errorf("%w: index %d beyond epoch size %d", ErrKeyExhausted, state.Index, state.Count)
	}
	if growth == nil {
		growth = FixedGrowth{}
	}
	return &Channel{seed: seed, state: state, growth: growth}, nil
}

// Seed returns the channel seed.
func (c *Channel) Seed() crypto.Seed {
	return c.seed
}

// State returns a snapshot of the channel state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetMode changes the channel mode. A non-empty key is canonicalized to
// crypto.SideKeySize bytes. Restricted mode requires a key.
//
// The change applies to the next encoded message. Inside an epoch larger than
// one leaf, messages before and after the change are stored at different
// addresses or under different keys, so a reader in either mode stops at the
// first offset it cannot see. Change modes when State().AtEpochStart() holds
// to keep every message of an epoch readable with one mode and key.
func (c *Channel) SetMode(mode Mode, key []byte) error {
	var sk crypto.SideKey
	if len(key) > 0 {
		var err error
		if sk, err = crypto.NewSideKey(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
	}
	return c.SetModeWithKey(mode, sk)
}

// SetModeWithKey changes the channel mode using an already canonical key.
// The zero key means none. The epoch caveat of SetMode applies.
func (c *Channel) SetModeWithKey(mode Mode, key crypto.SideKey) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, uint8(mode))
	}
	if mode == Restricted && key.IsZero() {
		return ErrMissingKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Mode = mode
	c.state.SideKey = key
	return nil
}

// Root returns the root that authenticates the next encoded message.
func (c *Channel) Root() (crypto.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.currentTree()
	if err != nil {
		return crypto.Hash{}, err
	}
	return current.Root(), nil
}

// commit installs an advanced state and rotates trees on epoch rollover.
func (c *Channel) commit(next ChannelState) {
	if next.Start != c.state.Start {
		if c.current != nil {
			c.current.Discard()
		}
		c.current, c.next = c.next, nil
	}
	c.state = next
}

func (c *Channel) currentTree() (*AuthenticationTree, error) {
	if !c.current.matches(c.state.Start, c.state.Count) {
		tree, err := BuildTree(c.seed, c.state.Security, c.state.Start, c.state.Count)
		if err != nil {
			return nil, err
		}
		c.current = tree
	}
	return c.current, nil
}

func (c *Channel) nextTree() (*AuthenticationTree, error) {
	if c.state.Start > math.MaxUint64-uint64(c.state.Count) {
		return nil, fmt.Errorf("%w: leaf index space exhausted", ErrKeyExhausted)
	}
	start := c.state.Start + uint64(c.state.Count)
	if !c.next.matches(start, c.state.NextCount) {
		tree, err := BuildTree(c.seed, c.state.Security, start, c.state.NextCount)
		if err != nil {
			return nil, err
		}
		c.next = tree
	}
	return c.next, nil
}

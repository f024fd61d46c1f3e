package protocol

import (
	"fmt"
	"time"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/merkle"
)

const (
	// DefaultSecurity is the security level of channels created without one.
	DefaultSecurity = 2

	// DefaultEpochSize is the number of leaves in the first epoch.
	DefaultEpochSize = 1

	// MaxEpochSize is the largest tree an epoch may use.
	MaxEpochSize = 1 << merkle.MaxDepth

	// DefaultPollInterval is how often a listener re-reads its subscription.
	DefaultPollInterval = 5 * time.Second
)

// ChannelConfig provides the parameters a channel is created with.
type ChannelConfig struct {
	// Security is the one-time signature strength, between crypto.MinSecurity
	// and crypto.MaxSecurity.
	Security int `json:"security" yaml:"security"`

	// EpochSize is the number of leaves in the first epoch's tree.
	EpochSize uint32 `json:"epoch_size" yaml:"epoch_size"`

	// Growth decides the size of each following epoch. Nil keeps the size constant.
	Growth GrowthPolicy `json:"-" yaml:"-"`

	// Seed is the channel secret. Nil generates a fresh one.
	Seed *crypto.Seed `json:"-" yaml:"-"`
}

// DefaultChannelConfig returns the configuration of a default channel.
func DefaultChannelConfig() *ChannelConfig {
	return &ChannelConfig{
		Security:  DefaultSecurity,
		EpochSize: DefaultEpochSize,
	}
}

// Validate checks the configuration.
func (c *ChannelConfig) Validate() error {
	if !crypto.ValidSecurity(c.Security) {
		return fmt.Errorf("%w: %d", ErrInvalidSecurity, c.Security)
	}
	if c.EpochSize == 0 || c.EpochSize > MaxEpochSize {
		return fmt.Errorf("%w: %d", ErrInvalidEpochSize, c.EpochSize)
	}
	return nil
}

func (c *ChannelConfig) growthPolicy() GrowthPolicy {
	if c.Growth == nil {
		return FixedGrowth{}
	}
	return c.Growth
}

// GrowthPolicy sizes the epoch that follows an epoch of the given size.
// Implementations must be deterministic.
type GrowthPolicy interface {
	NextCount(current uint32) uint32
}

// GrowthFunc adapts a function to GrowthPolicy.
type GrowthFunc func(current uint32) uint32

// NextCount calls f.
func (f GrowthFunc) NextCount(current uint32) uint32 {
	return f(current)
}

// FixedGrowth keeps every epoch the same size.
type FixedGrowth struct{}

// NextCount returns current.
func (FixedGrowth) NextCount(current uint32) uint32 {
	return current
}

// DoublingGrowth doubles the epoch size up to Max. A zero Max means MaxEpochSize.
type DoublingGrowth struct {
	Max uint32
}

// NextCount returns min(2*current, Max).
func (g DoublingGrowth) NextCount(current uint32) uint32 {
	limit := g.Max
	if limit == 0 || limit > MaxEpochSize {
		limit = MaxEpochSize
	}
	if current >= limit/2 {
		return limit
	}
	return current * 2
}

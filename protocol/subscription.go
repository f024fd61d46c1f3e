package protocol

import (
	"sync"
	"time"

	"github.com/flashbots/mamchan/crypto"
)

// Subscription tracks a subscriber's read position in one channel.
type Subscription struct {
	mode         Mode
	key          crypto.SideKey
	pollInterval time.Duration

	mu     sync.Mutex
	cursor Cursor
	active bool
}

// NewSubscription starts a subscription at root. Restricted channels require
// a key. A non-positive poll interval uses DefaultPollInterval.
func NewSubscription(root crypto.Hash, mode Mode, key crypto.SideKey, pollInterval time.Duration) (*Subscription, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if mode == Restricted && key.IsZero() {
		return nil, ErrMissingKey
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Subscription{
		mode:         mode,
		key:          key,
		pollInterval: pollInterval,
		cursor:       Cursor{Root: root},
		active:       true,
	}, nil
}

// Position returns the next unread position.
func (s *Subscription) Position() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Mode returns the channel mode.
func (s *Subscription) Mode() Mode {
	return s.mode
}

// Key returns the side key. The zero key means none.
func (s *Subscription) Key() crypto.SideKey {
	return s.key
}

// PollInterval returns how often a listener polls the subscription.
func (s *Subscription) PollInterval() time.Duration {
	return s.pollInterval
}

// Active reports whether a listener still drives the subscription.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Subscription) setPosition(c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
}

func (s *Subscription) setActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

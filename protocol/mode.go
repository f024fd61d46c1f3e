package protocol

import (
	"fmt"
	"strings"

	"github.com/flashbots/mamchan/crypto"
)

// Mode selects how a channel's payloads are masked and where they are stored.
type Mode uint8

const (
	// Public payloads are unmasked and stored at the tree root.
	Public Mode = iota
	// Private payloads are masked with a root-derived stream and stored at hash(root).
	Private
	// Restricted payloads are masked with a shared side key and stored at hash(root).
	Restricted
)

// Valid returns true if the mode is one of the defined modes.
func (m Mode) Valid() bool {
	switch m {
	case Public, Private, Restricted:
		return true
	}
	return false
}

func (m Mode) String() string {
	switch m {
	case Public:
		return "public"
	case Private:
		return "private"
	case Restricted:
		return "restricted"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode parses a textual mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	case "restricted":
		return Restricted, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Address returns the ledger address of the message chain position at root.
func Address(root crypto.Hash, mode Mode) crypto.Hash {
	if mode == Public {
		return root
	}
	return crypto.HashAddress(root)
}

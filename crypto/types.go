package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	// HashSize is the width of every digest, tree root and ledger address.
	HashSize = 32

	// SeedSize is the width of a channel seed.
	SeedSize = 32

	// SideKeySize is the canonical width of a shared side key.
	SideKeySize = 32

	// SideKeyPadding is appended to side keys shorter than SideKeySize.
	SideKeyPadding byte = '9'
)

var (
	// ErrInvalidHash is returned when a hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid hash")

	// ErrInvalidKey is returned when a side key cannot be canonicalized.
	ErrInvalidKey = errors.New("invalid side key")
)

// Hash is a fixed-width digest. Tree roots, leaf public keys and ledger
// addresses all share this representation.
type Hash [HashSize]byte

// NewHashFromBytes creates a Hash from a byte slice of exactly HashSize bytes.
func NewHashFromBytes(data []byte) (Hash, error) {
	var h Hash
	if len(data) != HashSize {
		return h, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHash, len(data), HashSize)
	}
	copy(h[:], data)
	return h, nil
}

// NewHashFromString creates a Hash from its hex encoding.
func NewHashFromString(data string) (Hash, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return NewHashFromBytes(rawBytes)
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Equal compares two hashes in constant time.
func (h Hash) Equal(other Hash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := NewHashFromString(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Seed is the secret a channel derives all of its leaf keys from.
// It is never transmitted.
type Seed [SeedSize]byte

// GenerateSeed returns a fresh random seed.
func GenerateSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("generate seed: %w", err)
	}
	return s, nil
}

// SeedFromPassphrase derives a seed by hashing a passphrase.
// Only suitable for fixtures and demos.
func SeedFromPassphrase(passphrase string) Seed {
	return Seed(sha3.Sum256([]byte(passphrase)))
}

// NewSeedFromString parses a hex encoded seed.
func NewSeedFromString(data string) (Seed, error) {
	var s Seed
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return s, fmt.Errorf("invalid seed: %w", err)
	}
	if len(rawBytes) != SeedSize {
		return s, fmt.Errorf("invalid seed: got %d bytes, want %d", len(rawBytes), SeedSize)
	}
	copy(s[:], rawBytes)
	return s, nil
}

// Hex returns the hex encoding of the seed.
func (s Seed) Hex() string {
	return hex.EncodeToString(s[:])
}

// SideKey is a shared secret used to mask payloads of non-public channels.
// The zero value means no key.
type SideKey [SideKeySize]byte

// NewSideKey canonicalizes key to SideKeySize bytes by right-padding it with
// SideKeyPadding. Empty, all-zero and over-long keys are rejected.
func NewSideKey(key []byte) (SideKey, error) {
	var sk SideKey
	if len(key) == 0 {
		return sk, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if len(key) > SideKeySize {
		return sk, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidKey, len(key), SideKeySize)
	}
	n := copy(sk[:], key)
	for i := n; i < SideKeySize; i++ {
		sk[i] = SideKeyPadding
	}
	if sk.IsZero() {
		return SideKey{}, fmt.Errorf("%w: all-zero key", ErrInvalidKey)
	}
	return sk, nil
}

// NewSideKeyFromString canonicalizes a textual key.
func NewSideKeyFromString(key string) (SideKey, error) {
	return NewSideKey([]byte(key))
}

// Bytes returns the key as a byte slice.
// This exposes secret material.
func (k SideKey) Bytes() []byte {
	return k[:]
}

// IsZero reports whether no key is set.
func (k SideKey) IsZero() bool {
	return k == SideKey{}
}

// Equal compares two side keys in constant time.
func (k SideKey) Equal(other SideKey) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

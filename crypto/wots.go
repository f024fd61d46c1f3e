package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Winternitz parameters. Digits are base 16, each fragment covers 16 digest
// bytes and carries its own 3-digit checksum.
const (
	MinSecurity = 1
	MaxSecurity = 3

	fragmentBytes  = 16
	fragmentDigits = 2 * fragmentBytes
	checksumDigits = 3
	chainLength    = 15

	// ChainsPerFragment is the number of hash chains one security level adds.
	ChainsPerFragment = fragmentDigits + checksumDigits

	// DigestSize is the length of a signed message digest.
	DigestSize = MaxSecurity * fragmentBytes
)

var (
	// ErrInvalidSecurity is returned for security levels outside [MinSecurity, MaxSecurity].
	ErrInvalidSecurity = errors.New("security level out of range")

	// ErrInvalidSignature is returned when a signature has the wrong length.
	ErrInvalidSignature = errors.New("invalid signature length")
)

// ValidSecurity reports whether security is a supported level.
func ValidSecurity(security int) bool {
	return security >= MinSecurity && security <= MaxSecurity
}

// SignatureSize returns the byte length of a one-time signature at the given
// security level.
func SignatureSize(security int) int {
	return security * ChainsPerFragment * HashSize
}

// LeafKey is a one-time Winternitz signing key bound to one tree leaf.
// A LeafKey must sign at most one message.
type LeafKey struct {
	security int
	index    uint64
	chains   []Hash
}

// DeriveLeafKey deterministically derives the signing key of the leaf at
// the global index from the channel seed.
func DeriveLeafKey(seed Seed, security int, index uint64) (*LeafKey, error) {
	if !ValidSecurity(security) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSecurity, security)
	}

	info := make([]byte, 0, len(keyTag)+1+8)
	info = append(info, keyTag...)
	info = append(info, byte(security))
	info = binary.BigEndian.AppendUint64(info, index)

	kdf := hkdf.New(sha256.New, seed[:], nil, info)
	chains := make([]Hash, security*ChainsPerFragment)
	for i := range chains {
		if _, err := io.ReadFull(kdf, chains[i][:]); err != nil {
			return nil, fmt.Errorf("expand leaf key: %w", err)
		}
	}

	return &LeafKey{security: security, index: index, chains: chains}, nil
}

// Index returns the global leaf index this key was derived for.
func (k *LeafKey) Index() uint64 {
	return k.index
}

// Security returns the security level of the key.
func (k *LeafKey) Security() int {
	return k.security
}

// PublicKey returns the leaf digest committed to by the authentication tree.
func (k *LeafKey) PublicKey() Hash {
	ends := make([]Hash, len(k.chains))
	for i := range k.chains {
		ends[i] = chain(k.chains[i], chainLength)
	}
	return leafDigest(ends)
}

// Sign produces a one-time signature over data.
func (k *LeafKey) Sign(data []byte) []byte {
	digest := MessageDigest(data)
	digits := signedDigits(digest, k.security)

	sig := make([]byte, 0, SignatureSize(k.security))
	for i, d := range digits {
		el := chain(k.chains[i], int(d))
		sig = append(sig, el[:]...)
	}
	return sig
}

// Wipe zeroes the key material.
func (k *LeafKey) Wipe() {
	clear(k.chains)
	k.chains = nil
}

// RecoverPublicKey returns the leaf digest implied by a signature over data.
// The signature is valid iff the result equals the expected leaf digest.
func RecoverPublicKey(security int, data, signature []byte) (Hash, error) {
	if !ValidSecurity(security) {
		return Hash{}, fmt.Errorf("%w: %d", ErrInvalidSecurity, security)
	}
	if len(signature) != SignatureSize(security) {
		return Hash{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSignature, len(signature), SignatureSize(security))
	}

	digits := signedDigits(MessageDigest(data), security)
	ends := make([]Hash, len(digits))
	for i, d := range digits {
		var el Hash
		copy(el[:], signature[i*HashSize:(i+1)*HashSize])
		ends[i] = chain(el, chainLength-int(d))
	}
	return leafDigest(ends), nil
}

// MessageDigest returns the digest that one-time signatures commit to.
func MessageDigest(data []byte) [DigestSize]byte {
	h := sha3.NewShake256()
	h.Write([]byte(messageTag))
	h.Write(data)

	var out [DigestSize]byte
	h.Read(out[:])
	return out
}

// signedDigits splits the first security fragments of the digest into base-16
// digits, each fragment followed by its checksum digits.
func signedDigits(digest [DigestSize]byte, security int) []uint8 {
	out := make([]uint8, 0, security*ChainsPerFragment)
	for f := 0; f < security; f++ {
		checksum := 0
		for _, b := range digest[f*fragmentBytes : (f+1)*fragmentBytes] {
			hi, lo := b>>4, b&0x0f
			out = append(out, hi, lo)
			checksum += 2*chainLength - int(hi) - int(lo)
		}
		out = append(out,
			uint8(checksum>>8)&0x0f,
			uint8(checksum>>4)&0x0f,
			uint8(checksum)&0x0f,
		)
	}
	return out
}

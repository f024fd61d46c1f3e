package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// ExchangePublicKey is an X25519 public key used to agree on side keys.
type ExchangePublicKey [32]byte

// ExchangePrivateKey is an X25519 private key.
type ExchangePrivateKey [32]byte

// GenerateExchangeKeyPair generates a new X25519 key pair.
func GenerateExchangeKeyPair() (ExchangePublicKey, ExchangePrivateKey, error) {
	var privKey ExchangePrivateKey
	if _, err := rand.Read(privKey[:]); err != nil {
		return ExchangePublicKey{}, privKey, err
	}
	return privKey.PublicKey(), privKey, nil
}

// PublicKey derives the public half of the key pair.
func (sk ExchangePrivateKey) PublicKey() ExchangePublicKey {
	var pubKey ExchangePublicKey
	curve25519.ScalarBaseMult((*[32]byte)(&pubKey), (*[32]byte)(&sk))
	return pubKey
}

// NewExchangePrivateKeyFromString parses a hex encoded private key.
func NewExchangePrivateKeyFromString(data string) (ExchangePrivateKey, error) {
	var sk ExchangePrivateKey
	if err := decodeFixedHex(sk[:], data); err != nil {
		return sk, fmt.Errorf("invalid exchange private key: %w", err)
	}
	return sk, nil
}

// NewExchangePublicKeyFromString parses a hex encoded public key.
func NewExchangePublicKeyFromString(data string) (ExchangePublicKey, error) {
	var pk ExchangePublicKey
	if err := decodeFixedHex(pk[:], data); err != nil {
		return pk, fmt.Errorf("invalid exchange public key: %w", err)
	}
	return pk, nil
}

// String returns the hex encoding of the public key.
func (pk ExchangePublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// Hex returns the hex encoding of the private key.
func (sk ExchangePrivateKey) Hex() string {
	return hex.EncodeToString(sk[:])
}

// DeriveSideKey performs X25519 key agreement and derives a side key from the
// shared point. Both parties obtain the same key for the same info.
func DeriveSideKey(privateKey ExchangePrivateKey, publicKey ExchangePublicKey, info []byte) (SideKey, error) {
	sharedPoint, err := curve25519.X25519(privateKey[:], publicKey[:])
	if err != nil {
		return SideKey{}, fmt.Errorf("key agreement: %w", err)
	}

	salt := []byte(sideKeyTag)
	kdf := hkdf.New(sha256.New, sharedPoint, salt, info)

	var key SideKey
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return SideKey{}, err
	}
	return key, nil
}

func decodeFixedHex(dst []byte, data string) error {
	raw, err := hex.DecodeString(data)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("got %d bytes, want %d", len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}

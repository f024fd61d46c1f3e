// Package crypto provides the primitives a masked authenticated channel is
// composed from.
//
// The package implements:
//
//   - Fixed-width identifiers (Hash, Seed, SideKey) with constant-time comparison
//   - Winternitz one-time signatures over SHA3 with deterministic leaf key derivation
//   - Keystream masking for non-public payloads
//   - Address obfuscation of tree roots
//   - X25519 key agreement for deriving shared side keys
//
// # One-Time Signatures
//
// A leaf key is derived from the channel seed, a security level and a global
// leaf index with HKDF-SHA256. Signatures use base-16 Winternitz chains over
// SHA3-256. A message digest is 48 bytes of SHAKE256, split into three
// fragments; security level s signs the first s fragments, each with its own
// checksum:
//
//	key, _ := crypto.DeriveLeafKey(seed, 2, 17)
//	sig := key.Sign(data)
//	leaf, _ := crypto.RecoverPublicKey(2, data, sig)
//	// leaf == key.PublicKey()
//
// Verification recomputes the leaf digest from the signature. The caller
// authenticates that digest, typically through a Merkle membership proof.
//
// # Masking
//
// DeriveMask expands SHAKE256 over (side key, root, leaf offset). The zero
// side key is used by private channels, which are keyed by the root alone.
//
// # Key Agreement
//
// DeriveSideKey turns an X25519 shared point into a SideKey with HKDF, so two
// parties exchanging public keys arrive at the same restricted-mode key.
package crypto

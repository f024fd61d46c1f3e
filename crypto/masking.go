package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// DeriveMask expands an n byte XOR keystream bound to the side key, the epoch
// root and the leaf offset within the epoch. Every leaf gets a distinct stream.
func DeriveMask(key SideKey, root Hash, offset uint32, n int) []byte {
	if n == 0 {
		return []byte{}
	}

	h := sha3.NewShake256()
	h.Write([]byte(maskTag))
	h.Write(key[:])
	h.Write(root[:])
	h.Write(binary.BigEndian.AppendUint32(nil, offset))

	res := make([]byte, n)
	h.Read(res)
	return res
}

// MaskInplace XORs data with the keystream for (key, root, offset).
// Applying it twice restores the original data.
func MaskInplace(data []byte, key SideKey, root Hash, offset uint32) {
	XorInplace(data, DeriveMask(key, root, offset, len(data)))
}

// XorInplace XORs src into dst. src must be at least as long as dst.
func XorInplace(dst []byte, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

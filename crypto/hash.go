package crypto

import (
	"golang.org/x/crypto/sha3"
)

// Domain separation tags. A digest computed for one purpose can never be
// confused with a digest computed for another.
const (
	leafTag    = "mamchan:leaf:v1"
	addressTag = "mamchan:address:v1"
	messageTag = "mamchan:message:v1"
	maskTag    = "mamchan:mask:v1"
	keyTag     = "mamchan:leaf-key:v1"
	sideKeyTag = "mamchan:side-key:v1"

	nodePrefix byte = 0x01
)

// HashNodes combines two sibling tree nodes into their parent.
func HashNodes(left, right Hash) Hash {
	buf := make([]byte, 1+2*HashSize)
	buf[0] = nodePrefix
	copy(buf[1:], left[:])
	copy(buf[1+HashSize:], right[:])
	return Hash(sha3.Sum256(buf))
}

// HashAddress obfuscates a tree root into a ledger address. The root cannot
// be recomputed from the address.
func HashAddress(root Hash) Hash {
	h := sha3.New256()
	h.Write([]byte(addressTag))
	h.Write(root[:])
	var out Hash
	h.Sum(out[:0])
	return out
}

func leafDigest(chainEnds []Hash) Hash {
	h := sha3.New256()
	h.Write([]byte(leafTag))
	for i := range chainEnds {
		h.Write(chainEnds[i][:])
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

func chain(x Hash, steps int) Hash {
	for i := 0; i < steps; i++ {
		x = Hash(sha3.Sum256(x[:]))
	}
	return x
}

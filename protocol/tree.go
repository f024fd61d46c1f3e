package protocol

import (
	"fmt"
	"math"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/merkle"
)

// AuthenticationTree is the Merkle tree over the leaf public keys of one
// epoch, covering global leaf indices [start, start+count).
type AuthenticationTree struct {
	seed     crypto.Seed
	security int
	start    uint64
	count    uint32
	tree     *merkle.Tree
}

// BuildTree derives count leaf public keys starting at the global index start
// and builds the tree over them. Identical inputs always yield the same root.
func BuildTree(seed crypto.Seed, security int, start uint64, count uint32) (*AuthenticationTree, error) {
	if !crypto.ValidSecurity(security) {
		return nil, fmt.Errorf("%w: security %d", ErrTreeBuild, security)
	}
	if count == 0 || count > MaxEpochSize {
		return nil, fmt.Errorf("%w: count %d", ErrTreeBuild, count)
	}
	if start > math.MaxUint64-uint64(count) {
		return nil, fmt.Errorf("%w: leaf index space exhausted at %d", ErrTreeBuild, start)
	}

	leaves := make([]crypto.Hash, count)
	for i := range leaves {
		key, err := crypto.DeriveLeafKey(seed, security, start+uint64(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTreeBuild, err)
		}
		leaves[i] = key.PublicKey()
		key.Wipe()
	}

	tree, err := merkle.Build(leaves)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTreeBuild, err)
	}

	return &AuthenticationTree{
		seed:     seed,
		security: security,
		start:    start,
		count:    count,
		tree:     tree,
	}, nil
}

// Root returns the epoch root.
func (t *AuthenticationTree) Root() crypto.Hash {
	return t.tree.Root()
}

// Start returns the global index of the first leaf.
func (t *AuthenticationTree) Start() uint64 {
	return t.start
}

// Count returns the number of leaves.
func (t *AuthenticationTree) Count() uint32 {
	return t.count
}

// Depth returns the authentication path length.
func (t *AuthenticationTree) Depth() int {
	return t.tree.Depth()
}

// MembershipPath returns the authentication path of the leaf at offset.
func (t *AuthenticationTree) MembershipPath(offset uint32) ([]crypto.Hash, error) {
	return t.tree.Path(int(offset))
}

// LeafKey derives the one-time signing key of the leaf at offset.
// Callers wipe the key after use.
func (t *AuthenticationTree) LeafKey(offset uint32) (*crypto.LeafKey, error) {
	if offset >= t.count {
		return nil, fmt.Errorf("%w: offset %d of %d", ErrKeyExhausted, offset, t.count)
	}
	return crypto.DeriveLeafKey(t.seed, t.security, t.start+uint64(offset))
}

// Discard wipes the tree's copy of the seed. The tree can no longer sign.
func (t *AuthenticationTree) Discard() {
	clear(t.seed[:])
	t.tree = nil
}

func (t *AuthenticationTree) matches(start uint64, count uint32) bool {
	return t != nil && t.tree != nil && t.start == start && t.count == count
}

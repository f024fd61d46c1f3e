// Package merkle builds binary hash trees over leaf digests and produces and
// checks authentication paths.
//
// Trees are padded to a power of two with zero leaves. A tree with a single
// leaf has depth 0 and its root is the leaf itself.
package merkle

import (
	"errors"
	"fmt"

	"github.com/flashbots/mamchan/crypto"
)

// MaxDepth bounds the height of a tree, and therefore the length of any
// authentication path accepted from untrusted input.
const MaxDepth = 24

var (
	ErrEmptyTree      = errors.New("merkle: tree needs at least one leaf")
	ErrTooManyLeaves  = errors.New("merkle: too many leaves")
	ErrLeafOutOfRange = errors.New("merkle: leaf offset out of range")
)

// Tree is a complete binary tree stored level by level, leaves first.
type Tree struct {
	levels [][]crypto.Hash
	count  int
}

// Depth returns ceil(log2(count)), the authentication path length of a tree
// with count leaves.
func Depth(count int) int {
	depth := 0
	for (1 << depth) < count {
		depth++
	}
	return depth
}

// Build constructs the tree over leaves.
func Build(leaves []crypto.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	depth := Depth(len(leaves))
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrTooManyLeaves, len(leaves))
	}

	level := make([]crypto.Hash, 1<<depth)
	copy(level, leaves)

	levels := make([][]crypto.Hash, 0, depth+1)
	levels = append(levels, level)
	for len(level) > 1 {
		next := make([]crypto.Hash, len(level)/2)
		for i := range next {
			next[i] = crypto.HashNodes(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels, count: len(leaves)}, nil
}

// Root returns the top hash.
func (t *Tree) Root() crypto.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Count returns the number of real (unpadded) leaves.
func (t *Tree) Count() int {
	return t.count
}

// Depth returns the authentication path length.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Leaf returns the leaf digest at offset.
func (t *Tree) Leaf(offset int) (crypto.Hash, error) {
	if offset < 0 || offset >= t.count {
		return crypto.Hash{}, fmt.Errorf("%w: %d of %d", ErrLeafOutOfRange, offset, t.count)
	}
	return t.levels[0][offset], nil
}

// Path returns the sibling hashes from the leaf at offset up to the root.
func (t *Tree) Path(offset int) ([]crypto.Hash, error) {
	if offset < 0 || offset >= t.count {
		return nil, fmt.Errorf("%w: %d of %d", ErrLeafOutOfRange, offset, t.count)
	}

	path := make([]crypto.Hash, 0, t.Depth())
	idx := offset
	for l := 0; l < t.Depth(); l++ {
		path = append(path, t.levels[l][idx^1])
		idx >>= 1
	}
	return path, nil
}

// RootFromPath folds a leaf up its authentication path and returns the root
// it implies.
func RootFromPath(leaf crypto.Hash, offset uint32, path []crypto.Hash) crypto.Hash {
	node := leaf
	idx := offset
	for _, sibling := range path {
		if idx&1 == 1 {
			node = crypto.HashNodes(sibling, node)
		} else {
			node = crypto.HashNodes(node, sibling)
		}
		idx >>= 1
	}
	return node
}

// Verify reports whether leaf is at offset in the tree with the given root.
// The root comparison is constant time.
func Verify(root, leaf crypto.Hash, offset uint32, path []crypto.Hash) bool {
	return RootFromPath(leaf, offset, path).Equal(root)
}

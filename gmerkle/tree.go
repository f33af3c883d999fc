package gmerkle

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// Scheme determines how a [Tree] combines two child nodes into their
// parent, and how it compares nodes during lookup.
//
// Aggregate must be deterministic; the tree's root is only meaningful
// if two parties with the same leaves compute the same interior nodes.
// The right child passed to Aggregate may be T's zero value when the
// leaf count is not a power of two.
type Scheme[T any] interface {
	Aggregate(left, right T) (T, error)

	Equal(a, b T) bool
}

// Tree is a complete binary aggregation tree over a fixed leaf set,
// stored in array layout: leaves first, then each interior layer in
// turn, with the root as the final element.
type Tree[T any] struct {
	scheme Scheme[T]

	nodes []T

	// Number of real (unpadded) leaves.
	nLeaves int

	// Width of the leaf layer after padding to a power of two.
	leavesWidth int
}

// NewTree aggregates leaves pairwise under scheme until a single root
// remains. The leaf slice is copied; later mutation of the caller's
// slice does not affect the tree.
func NewTree[T any](scheme Scheme[T], leaves []T) (*Tree[T], error) {
	if len(leaves) == 0 {
		return nil, errors.New("gmerkle: tree requires at least one leaf")
	}
	if len(leaves) > math.MaxUint16 {
		return nil, fmt.Errorf("gmerkle: too many leaves: %d", len(leaves))
	}

	leavesWidth := len(leaves)
	if leavesWidth&(leavesWidth-1) != 0 {
		leavesWidth = 1 << bits.Len16(uint16(leavesWidth))
	}

	nNodes := 2*leavesWidth - 1

	t := &Tree[T]{
		scheme: scheme,

		nodes: make([]T, nNodes),

		nLeaves:     len(leaves),
		leavesWidth: leavesWidth,
	}
	copy(t.nodes, leaves)

	// Aggregate layer by layer; positions past nLeaves stay at T's zero
	// value and participate in aggregation like any other node.
	readOffset := 0
	layerWidth := leavesWidth
	for layerWidth > 1 {
		nextLayerWidth := layerWidth >> 1
		for j := range nextLayerWidth {
			srcIdx := readOffset + j*2
			agg, err := scheme.Aggregate(t.nodes[srcIdx], t.nodes[srcIdx+1])
			if err != nil {
				return nil, fmt.Errorf("gmerkle: aggregating layer node %d: %w", srcIdx, err)
			}
			t.nodes[readOffset+layerWidth+j] = agg
		}

		readOffset += layerWidth
		layerWidth = nextLayerWidth
	}

	return t, nil
}

// NLeaves returns the number of unpadded leaves the tree was built from.
func (t *Tree[T]) NLeaves() int {
	return t.nLeaves
}

// Root returns the tree's root aggregate.
func (t *Tree[T]) Root() T {
	return t.nodes[len(t.nodes)-1]
}

// Leaf returns the leaf at index i. The ok value is false if i is out
// of range of the unpadded leaves.
func (t *Tree[T]) Leaf(i int) (T, bool) {
	if i < 0 || i >= t.nLeaves {
		var zero T
		return zero, false
	}
	return t.nodes[i], true
}

// Lookup does a linear scan for a leaf equal to v under the scheme's
// Equal, returning its index, or -1 if no leaf matches.
//
// This scans rather than indexing because T need not be a map key;
// callers with hot lookup paths maintain their own index, as the simple
// signature proof in gcrypto does with its key-bytes map.
func (t *Tree[T]) Lookup(v T) (int, bool) {
	for i := range t.nLeaves {
		if t.scheme.Equal(t.nodes[i], v) {
			return i, true
		}
	}
	return -1, false
}

// BitSetToIDs maps a bitset of leaf indices to the minimal set of node
// values that exactly covers those leaves: any subtree whose leaves are
// all set contributes its single aggregate node instead of its leaves.
func (t *Tree[T]) BitSetToIDs(bs *bitset.BitSet) []T {
	var out []T
	t.cover(&out, bs, len(t.nodes)-1, 0, t.leavesWidth)
	return out
}

// cover walks the subtree rooted at nodeIdx, spanning leaf positions
// [lo, lo+span).
func (t *Tree[T]) cover(out *[]T, bs *bitset.BitSet, nodeIdx, lo, span int) {
	allSet := true
	anySet := false
	for i := lo; i < lo+span; i++ {
		// Padded positions count as unset; an aggregate including a
		// padded leaf can never stand in for a set of real leaves alone.
		set := i < t.nLeaves && bs.Test(uint(i))
		allSet = allSet && set
		anySet = anySet || set
	}

	if !anySet {
		return
	}
	if allSet {
		*out = append(*out, t.nodes[nodeIdx])
		return
	}

	// span == 1 with anySet implies allSet, so reaching here means an
	// interior node with a mixed subtree.
	childSpan := span / 2
	leftIdx, rightIdx := t.childIndices(nodeIdx)
	t.cover(out, bs, leftIdx, lo, childSpan)
	t.cover(out, bs, rightIdx, lo+childSpan, childSpan)
}

// childIndices converts a node's flat index into the flat indices of
// its two children, using the per-layer offsets of the array layout.
func (t *Tree[T]) childIndices(nodeIdx int) (left, right int) {
	// Locate nodeIdx's layer by walking offsets from the leaves up.
	offset := 0
	layerWidth := t.leavesWidth
	for nodeIdx >= offset+layerWidth {
		offset += layerWidth
		layerWidth >>= 1
	}

	posInLayer := nodeIdx - offset
	childLayerOffset := offset - layerWidth*2

	// The leaf layer starts at offset 0; its "children" don't exist,
	// and cover never recurses below span 1, so this arithmetic is only
	// reached for interior nodes.
	left = childLayerOffset + posInLayer*2
	return left, left + 1
}

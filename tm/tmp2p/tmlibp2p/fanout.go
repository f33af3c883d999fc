package tmlibp2p

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/bft-sm/tmcore/gnetdag"
)

// RebroadcastTree maps an ordered peer list onto a [gnetdag.FixedTree]
// so that each node's periodic rebroadcast reaches a bounded set of
// children instead of flooding every peer. All validators must build
// the tree from the same peer ordering (validator-set order is the
// natural choice) for the layers to line up.
type RebroadcastTree struct {
	tree    gnetdag.FixedTree
	peers   []peer.ID
	selfIdx int
}

// NewRebroadcastTree builds the fanout for self within peers. If self
// is not present in peers, the resulting tree has no children and
// Children returns nil.
func NewRebroadcastTree(branchFactor int, peers []peer.ID, self peer.ID) RebroadcastTree {
	selfIdx := -1
	for i, p := range peers {
		if p == self {
			selfIdx = i
			break
		}
	}

	return RebroadcastTree{
		tree:    gnetdag.FixedTree{BranchFactor: branchFactor},
		peers:   peers,
		selfIdx: selfIdx,
	}
}

// Children returns the peers this node forwards rebroadcasts to: its
// children in the tree, clamped to the peer list's actual length.
func (t RebroadcastTree) Children() []peer.ID {
	if t.selfIdx < 0 {
		return nil
	}

	first := t.tree.FirstChild(t.selfIdx)
	if first >= len(t.peers) {
		return nil
	}

	end := first + t.tree.BranchFactor
	if end > len(t.peers) {
		end = len(t.peers)
	}

	out := make([]peer.ID, end-first)
	copy(out, t.peers[first:end])
	return out
}

// Parent returns the peer this node expects rebroadcasts from, and
// false for the root (or when self is not in the peer list).
func (t RebroadcastTree) Parent() (peer.ID, bool) {
	if t.selfIdx < 0 {
		return "", false
	}
	p := t.tree.Parent(t.selfIdx)
	if p < 0 {
		return "", false
	}
	return t.peers[p], true
}

// Package tmpart implements the proposal-parts stream of the network
// surface: a proposed value's bytes are erasure-coded into shards, each
// shard travels as one [Part] on the parts channel, and the stream is
// terminated by a final part carrying the stream's geometry and a
// Merkle root binding every shard.
//
// Erasure coding means a receiver can reassemble the value from any
// DataShards-sized subset of the full shard set, so the stream survives
// the lossy gossip layer without retransmission.
package tmpart

import (
	"golang.org/x/crypto/blake2b"

	"github.com/bft-sm/tmcore/gmerkle"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// Part is a single message on the proposal-parts channel. Parts within
// one stream share (Height, Round, StreamID) and are ordered by Index.
//
// Ordinary parts carry one erasure-coded shard in Data. The final part
// (Final = true, highest Index in the stream) carries no shard; instead
// it holds the stream geometry a receiver needs to reconstruct, and the
// root of the Merkle tree over every shard's hash.
type Part struct {
	Height   tmconsensus.Height
	Round    tmconsensus.Round
	StreamID uint64

	Index uint32
	Data  []byte

	Final        bool
	DataShards   uint32
	ParityShards uint32
	DataSize     uint32
	Root         tmconsensus.Hash
}

// StreamKey identifies one parts stream.
type StreamKey struct {
	Height   tmconsensus.Height
	Round    tmconsensus.Round
	StreamID uint64
}

// Key returns p's stream identity.
func (p Part) Key() StreamKey {
	return StreamKey{Height: p.Height, Round: p.Round, StreamID: p.StreamID}
}

// shardHash is the leaf hash for one shard.
func shardHash(shard []byte) tmconsensus.Hash {
	return tmconsensus.Hash(blake2b.Sum256(shard))
}

// hashScheme aggregates two child hashes into their parent by hashing
// the concatenation, giving the [gmerkle.Tree] over shard hashes.
type hashScheme struct{}

func (hashScheme) Aggregate(left, right tmconsensus.Hash) (tmconsensus.Hash, error) {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return tmconsensus.Hash(blake2b.Sum256(buf[:])), nil
}

func (hashScheme) Equal(a, b tmconsensus.Hash) bool { return a == b }

// shardRoot builds the Merkle root over the hashes of every shard in
// order, data shards first then parity, matching the encoder's output
// order.
func shardRoot(shards [][]byte) (tmconsensus.Hash, error) {
	leaves := make([]tmconsensus.Hash, len(shards))
	for i, s := range shards {
		leaves[i] = shardHash(s)
	}

	tree, err := gmerkle.NewTree(hashScheme{}, leaves)
	if err != nil {
		return tmconsensus.Hash{}, err
	}
	return tree.Root(), nil
}

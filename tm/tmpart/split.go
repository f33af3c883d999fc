package tmpart

import (
	"context"
	"fmt"

	"github.com/bft-sm/tmcore/gerasure"
	"github.com/bft-sm/tmcore/gerasure/gereedsolomon"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// Splitter turns a value's bytes into a parts stream. One Splitter is
// reusable across streams; the geometry is fixed at construction.
type Splitter struct {
	enc gerasure.Encoder

	dataShards   int
	parityShards int
}

// NewSplitter returns a Splitter producing dataShards+parityShards
// shard parts per stream, plus the final geometry part.
func NewSplitter(dataShards, parityShards int) (*Splitter, error) {
	enc, err := gereedsolomon.NewEncoder(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("tmpart: building encoder: %w", err)
	}
	return &Splitter{
		enc:          enc,
		dataShards:   dataShards,
		parityShards: parityShards,
	}, nil
}

// Split erasure-codes value into one Part per shard, terminated by the
// final geometry part, all tagged with (h, r, streamID). The returned
// parts are in Index order; the network layer may deliver them in any
// order and drop up to the parity count of shard parts.
//
// The encoder takes ownership of value's backing array; callers must
// not mutate value afterward.
func (s *Splitter) Split(
	ctx context.Context,
	h tmconsensus.Height,
	r tmconsensus.Round,
	streamID uint64,
	value []byte,
) ([]Part, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("tmpart: refusing to split empty value")
	}

	shards, err := s.enc.Encode(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("tmpart: encoding value: %w", err)
	}

	root, err := shardRoot(shards)
	if err != nil {
		return nil, fmt.Errorf("tmpart: computing shard root: %w", err)
	}

	parts := make([]Part, 0, len(shards)+1)
	for i, shard := range shards {
		parts = append(parts, Part{
			Height:   h,
			Round:    r,
			StreamID: streamID,
			Index:    uint32(i),
			Data:     shard,
		})
	}

	parts = append(parts, Part{
		Height:   h,
		Round:    r,
		StreamID: streamID,
		Index:    uint32(len(shards)),

		Final:        true,
		DataShards:   uint32(s.dataShards),
		ParityShards: uint32(s.parityShards),
		DataSize:     uint32(len(value)),
		Root:         root,
	})

	return parts, nil
}

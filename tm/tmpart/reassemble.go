package tmpart

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-sm/tmcore/gerasure"
	"github.com/bft-sm/tmcore/gerasure/gereedsolomon"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// ErrRootMismatch indicates a stream reconstructed cleanly but its
// shard set does not hash to the root the final part committed to; the
// stream is discarded, since at least one shard was forged or corrupted.
var ErrRootMismatch = errors.New("tmpart: reconstructed shards do not match stream root")

// Reassembled is a completed stream: the original value bytes for
// (Height, Round).
type Reassembled struct {
	Height tmconsensus.Height
	Round  tmconsensus.Round
	Data   []byte
}

type stream struct {
	shards map[uint32][]byte
	final  *Part
	done   bool
}

// Reassembler collects parts across any number of concurrent streams
// and reports each stream's completion exactly once.
//
// A Reassembler is not safe for concurrent use; the parts channel is
// ordered per stream (spec'd by the network surface), and a single
// goroutine is expected to drain it.
type Reassembler struct {
	streams map[StreamKey]*stream
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{streams: make(map[StreamKey]*stream)}
}

// Add accepts one part. When the part completes its stream, Add returns
// the reassembled value and complete=true; the stream is then retired
// and later parts for it are ignored. Duplicate parts are ignored.
func (a *Reassembler) Add(ctx context.Context, p Part) (out Reassembled, complete bool, err error) {
	key := p.Key()
	st, ok := a.streams[key]
	if !ok {
		st = &stream{shards: make(map[uint32][]byte)}
		a.streams[key] = st
	}
	if st.done {
		return Reassembled{}, false, nil
	}

	if p.Final {
		if st.final == nil {
			cp := p
			st.final = &cp
		}
	} else {
		if _, dup := st.shards[p.Index]; !dup {
			st.shards[p.Index] = p.Data
		}
	}

	if st.final == nil {
		return Reassembled{}, false, nil
	}

	data, err := a.tryReconstruct(ctx, st)
	if err != nil {
		if errors.Is(err, gerasure.ErrIncompleteSet) {
			return Reassembled{}, false, nil
		}
		// A forged or corrupt stream is unrecoverable; drop it so a
		// proposer retransmitting honestly can start a fresh stream id.
		delete(a.streams, key)
		return Reassembled{}, false, err
	}

	st.done = true
	st.shards = nil

	return Reassembled{Height: key.Height, Round: key.Round, Data: data}, true, nil
}

// tryReconstruct attempts a full decode of st given its final part's
// geometry. It returns gerasure.ErrIncompleteSet when more shards are
// still needed.
func (a *Reassembler) tryReconstruct(ctx context.Context, st *stream) ([]byte, error) {
	f := st.final
	totalShards := int(f.DataShards + f.ParityShards)

	if len(st.shards) < int(f.DataShards) {
		return nil, gerasure.ErrIncompleteSet
	}

	var shardSize int
	for _, s := range st.shards {
		shardSize = len(s)
		break
	}

	rec, err := gereedsolomon.NewReconstructor(int(f.DataShards), int(f.ParityShards), shardSize)
	if err != nil {
		return nil, fmt.Errorf("tmpart: building reconstructor: %w", err)
	}

	reconstructErr := error(gerasure.ErrIncompleteSet)
	for idx, shard := range st.shards {
		if int(idx) >= totalShards {
			return nil, fmt.Errorf("tmpart: shard index %d out of range for %d shards", idx, totalShards)
		}
		if len(shard) != shardSize {
			return nil, fmt.Errorf("tmpart: inconsistent shard sizes in stream: %d vs %d", len(shard), shardSize)
		}
		reconstructErr = rec.ReconstructData(ctx, int(idx), shard)
		if reconstructErr == nil {
			break
		}
		if !errors.Is(reconstructErr, gerasure.ErrIncompleteSet) {
			return nil, fmt.Errorf("tmpart: reconstructing: %w", reconstructErr)
		}
	}
	if reconstructErr != nil {
		return nil, reconstructErr
	}

	data, err := rec.Data(nil, int(f.DataSize))
	if err != nil {
		return nil, fmt.Errorf("tmpart: extracting data: %w", err)
	}

	if err := a.verifyRoot(ctx, f, data); err != nil {
		return nil, err
	}

	return data, nil
}

// verifyRoot re-encodes the reconstructed value and checks the full
// shard set hashes to the root the final part committed to. Verifying
// the whole set after reconstruction, rather than each shard on
// arrival, trades a little CPU at completion for not needing per-shard
// Merkle proofs on the wire.
func (a *Reassembler) verifyRoot(ctx context.Context, f *Part, data []byte) error {
	enc, err := gereedsolomon.NewEncoder(int(f.DataShards), int(f.ParityShards))
	if err != nil {
		return fmt.Errorf("tmpart: building verification encoder: %w", err)
	}

	// Encode takes ownership of its input, so hand it a copy.
	cp := make([]byte, len(data))
	copy(cp, data)

	shards, err := enc.Encode(ctx, cp)
	if err != nil {
		return fmt.Errorf("tmpart: re-encoding for verification: %w", err)
	}

	root, err := shardRoot(shards)
	if err != nil {
		return fmt.Errorf("tmpart: recomputing shard root: %w", err)
	}

	if root != f.Root {
		return ErrRootMismatch
	}
	return nil
}

// PruneBelow discards every stream for a height strictly below h,
// completed or not; heights only move forward, so their streams can
// never complete usefully.
func (a *Reassembler) PruneBelow(h tmconsensus.Height) {
	for key := range a.streams {
		if key.Height < h {
			delete(a.streams, key)
		}
	}
}

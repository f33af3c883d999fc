package tmpart_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/tm/tmpart"
)

func TestSplitReassemble_AllParts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sp, err := tmpart.NewSplitter(4, 2)
	require.NoError(t, err)

	value := bytes.Repeat([]byte("consensus value payload "), 40)
	parts, err := sp.Split(ctx, 3, 0, 7, append([]byte(nil), value...))
	require.NoError(t, err)
	require.Len(t, parts, 7, "4 data + 2 parity shards + final part")

	final := parts[len(parts)-1]
	require.True(t, final.Final)
	require.EqualValues(t, len(value), final.DataSize)

	ra := tmpart.NewReassembler()
	var got tmpart.Reassembled
	var complete bool
	for _, p := range parts {
		got, complete, err = ra.Add(ctx, p)
		require.NoError(t, err)
		if complete {
			break
		}
	}

	require.True(t, complete)
	require.EqualValues(t, 3, got.Height)
	require.Equal(t, value, got.Data)
}

func TestReassemble_SurvivesShardLoss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sp, err := tmpart.NewSplitter(4, 2)
	require.NoError(t, err)

	value := bytes.Repeat([]byte{0xa5, 0x5a, 0x01}, 500)
	parts, err := sp.Split(ctx, 9, 1, 1, append([]byte(nil), value...))
	require.NoError(t, err)

	// Drop two shard parts (the parity count); deliver the final part
	// first to exercise the buffer-until-geometry path.
	delivered := []tmpart.Part{parts[len(parts)-1]}
	dropped := 0
	for _, p := range parts[:len(parts)-1] {
		if dropped < 2 && p.Index%3 == 0 {
			dropped++
			continue
		}
		delivered = append(delivered, p)
	}

	ra := tmpart.NewReassembler()
	var got tmpart.Reassembled
	var complete bool
	for _, p := range delivered {
		got, complete, err = ra.Add(ctx, p)
		require.NoError(t, err)
		if complete {
			break
		}
	}

	require.True(t, complete)
	require.Equal(t, value, got.Data)
}

func TestReassemble_RejectsForgedShard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sp, err := tmpart.NewSplitter(2, 1)
	require.NoError(t, err)

	value := bytes.Repeat([]byte("payload"), 64)
	parts, err := sp.Split(ctx, 1, 0, 2, append([]byte(nil), value...))
	require.NoError(t, err)

	// Corrupt one data shard; keep only data shards so reconstruction
	// cannot route around the corruption.
	parts[0].Data = append([]byte(nil), parts[0].Data...)
	parts[0].Data[0] ^= 0xff

	ra := tmpart.NewReassembler()
	var lastErr error
	complete := false
	for _, p := range []tmpart.Part{parts[0], parts[1], parts[len(parts)-1]} {
		_, complete, lastErr = ra.Add(ctx, p)
		if lastErr != nil || complete {
			break
		}
	}

	require.False(t, complete)
	require.ErrorIs(t, lastErr, tmpart.ErrRootMismatch)
}

func TestReassemble_DuplicatePartsAreIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sp, err := tmpart.NewSplitter(2, 1)
	require.NoError(t, err)

	value := bytes.Repeat([]byte{1, 2, 3, 4}, 100)
	parts, err := sp.Split(ctx, 5, 0, 3, append([]byte(nil), value...))
	require.NoError(t, err)

	ra := tmpart.NewReassembler()

	// First data shard twice, then the rest.
	_, complete, err := ra.Add(ctx, parts[0])
	require.NoError(t, err)
	require.False(t, complete)

	_, complete, err = ra.Add(ctx, parts[0])
	require.NoError(t, err)
	require.False(t, complete)

	var got tmpart.Reassembled
	for _, p := range parts[1:] {
		got, complete, err = ra.Add(ctx, p)
		require.NoError(t, err)
		if complete {
			break
		}
	}
	require.True(t, complete)
	require.Equal(t, value, got.Data)

	// The stream is retired; replaying a part reports nothing.
	_, complete, err = ra.Add(ctx, parts[1])
	require.NoError(t, err)
	require.False(t, complete)
}

func TestPruneBelow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sp, err := tmpart.NewSplitter(2, 1)
	require.NoError(t, err)

	value := bytes.Repeat([]byte("v"), 50)
	oldParts, err := sp.Split(ctx, 1, 0, 1, append([]byte(nil), value...))
	require.NoError(t, err)

	ra := tmpart.NewReassembler()
	_, _, err = ra.Add(ctx, oldParts[0])
	require.NoError(t, err)

	ra.PruneBelow(2)

	// The partial stream for height 1 was discarded, shard included:
	// the final part alone starts a fresh stream with no shards, which
	// cannot complete.
	_, complete, err := ra.Add(ctx, oldParts[len(oldParts)-1])
	require.NoError(t, err)
	require.False(t, complete)
}

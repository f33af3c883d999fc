package tmwal_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmcodec/tmjson"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

type testValue struct{ s string }

func (v testValue) ID() tmconsensus.Hash {
	var h tmconsensus.Hash
	copy(h[:], v.s)
	return h
}

type testValueCodec struct{}

func (testValueCodec) Encode(v tmconsensus.Value) ([]byte, error) {
	return []byte(v.(testValue).s), nil
}

func (testValueCodec) Decode(b []byte) (tmconsensus.Value, error) {
	return testValue{s: string(b)}, nil
}

func newCodec() tmwal.EntryCodec {
	return tmjson.Codec{VC: testValueCodec{}}
}

func TestEntryRoundTrip(t *testing.T) {
	codec := newCodec()

	entries := []tmwal.Entry{
		tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{
			SignedVote: &tmconsensus.SignedVote{
				Vote: tmconsensus.Vote{
					Type:         tmconsensus.PrevoteType,
					Height:       1,
					Round:        0,
					Value:        tmconsensus.Val(tmconsensus.Hash{1, 2, 3}),
					VoterAddress: "A",
				},
				Signature: []byte("sig-a"),
			},
		}),
		tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{
			SignedProposal: &tmconsensus.SignedProposal{
				Proposal: tmconsensus.Proposal{
					Height:          1,
					Round:           0,
					Value:           testValue{s: "hello"},
					PolRound:        tmconsensus.NilRound,
					ProposerAddress: "A",
				},
				Signature: []byte("sig-p"),
			},
		}),
		tmwal.TimeoutEntry(tmconsensus.NewTimeout(0, tmconsensus.TimeoutPropose)),
		tmwal.ProposedValueEntry(tmwal.ProposedValue{
			Height:          1,
			Round:           0,
			Value:           testValue{s: "world"},
			ProposerAddress: "A",
			Origin:          tmwal.OriginConsensus,
		}),
	}

	var buf bytes.Buffer
	for _, e := range entries {
		require.NoError(t, tmwal.WriteEntry(&buf, codec, e))
	}

	for i, want := range entries {
		got, err := tmwal.ReadEntry(&buf, codec)
		require.NoError(t, err, "entry %d", i)
		require.Equal(t, want.Kind, got.Kind, "entry %d kind", i)

		switch want.Kind {
		case tmwal.KindConsensusMessage:
			require.Equal(t, want.ConsensusMessage, got.ConsensusMessage)
		case tmwal.KindTimeout:
			require.Equal(t, want.Timeout, got.Timeout)
		case tmwal.KindProposedValue:
			require.Equal(t, want.ProposedValue, got.ProposedValue)
		}
	}
}

func TestFileWALReplay(t *testing.T) {
	codec := newCodec()
	dir := t.TempDir()

	w, err := tmwal.OpenFileWAL(dir, codec)
	require.NoError(t, err)

	entries, err := w.StartHeight(1)
	require.NoError(t, err)
	require.Empty(t, entries)

	vA := tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{
		SignedVote: &tmconsensus.SignedVote{
			Vote: tmconsensus.Vote{
				Type: tmconsensus.PrevoteType, Height: 1, Round: 0,
				Value: tmconsensus.Val(tmconsensus.Hash{1}), VoterAddress: "A",
			},
		},
	})
	vB := tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{
		SignedVote: &tmconsensus.SignedVote{
			Vote: tmconsensus.Vote{
				Type: tmconsensus.PrevoteType, Height: 1, Round: 0,
				Value: tmconsensus.Val(tmconsensus.Hash{1}), VoterAddress: "B",
			},
		},
	})
	to := tmwal.TimeoutEntry(tmconsensus.NewTimeout(0, tmconsensus.TimeoutPropose))

	require.NoError(t, w.Append(vA))
	require.NoError(t, w.Append(vB))
	require.NoError(t, w.Append(to))
	require.NoError(t, w.Close())

	// Simulate a crash and restart: a fresh FileWAL over the same
	// directory, re-entering the same height, must replay all three
	// entries in order (spec §8 scenario S6).
	w2, err := tmwal.OpenFileWAL(dir, codec)
	require.NoError(t, err)

	replayed, err := w2.StartHeight(1)
	require.NoError(t, err)
	require.Len(t, replayed, 3)
	require.Equal(t, vA.ConsensusMessage, replayed[0].ConsensusMessage)
	require.Equal(t, vB.ConsensusMessage, replayed[1].ConsensusMessage)
	require.Equal(t, to.Timeout, replayed[2].Timeout)

	// Entering height 2 starts a fresh, empty sequence.
	fresh, err := w2.StartHeight(2)
	require.NoError(t, err)
	require.Empty(t, fresh)
}

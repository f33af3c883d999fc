package tmengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/internal/gtest"
	"github.com/bft-sm/tmcore/tm/tmcodec/tmjson"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmconsensus/tmconsensustest"
	"github.com/bft-sm/tmcore/tm/tmengine"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

func newCoordinator(t *testing.T, ctx context.Context, fx *tmconsensustest.Fixture, selfIdx int) *tmengine.Coordinator {
	t.Helper()

	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}
	wal, err := tmwal.OpenFileWAL(t.TempDir(), codec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.Close() })

	c, err := tmengine.New(ctx, gtest.NewLogger(t),
		tmengine.WithInitialHeight(1),
		tmengine.WithAddress(fx.Address(selfIdx)),
		tmengine.WithThresholdParams(tmconsensus.DefaultThresholdParams()),
		tmengine.WithValuePayload(tmengine.ProposalAndParts),
		tmengine.WithVoteSyncMode(tmengine.Rebroadcast),
		tmengine.WithSigner(fx.Signers[selfIdx]),
		tmengine.WithWAL(wal),
	)
	require.NoError(t, err)
	return c
}

func kinds(effs []tmengine.Effect) map[tmengine.EffectKind]int {
	out := make(map[tmengine.EffectKind]int)
	for _, e := range effs {
		out[e.Kind]++
	}
	return out
}

func TestNew_ValidatesRequiredOptionsTogether(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := tmengine.New(ctx, gtest.NewLogger(t))
	require.Error(t, err)

	// errors.Join reports every missing requirement at once.
	for _, want := range []string{"WithSigner", "WithWAL", "WithAddress", "WithThresholdParams"} {
		require.Contains(t, err.Error(), want)
	}
}

func TestCoordinator_ProcessBeforeStartHeightFails(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := tmconsensustest.NewEd25519Fixture(4)
	c := newCoordinator(t, ctx, fx, 0)

	sv := fx.PrevoteFor(ctx, 1, 1, 0, tmconsensus.VNil[tmconsensus.Hash]())
	_, err := c.Process(ctx, tmengine.VoteInput(sv))
	require.Error(t, err)
}

func TestCoordinator_HeightGating(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := tmconsensustest.NewEd25519Fixture(4)
	selfIdx := (fx.ProposerIndex(1, 0) + 1) % 4
	c := newCoordinator(t, ctx, fx, selfIdx)

	_, err := c.Process(ctx, tmengine.StartHeight(1, fx.ValSet))
	require.NoError(t, err)

	t.Run("past heights are dropped", func(t *testing.T) {
		sv := fx.PrevoteFor(ctx, 0, 0, 0, tmconsensus.VNil[tmconsensus.Hash]())
		effs, err := c.Process(ctx, tmengine.VoteInput(sv))
		require.NoError(t, err)
		require.Empty(t, effs)
	})

	futureVote := fx.PrevoteFor(ctx, 0, 2, 0, tmconsensus.VNil[tmconsensus.Hash]())

	t.Run("future heights are buffered silently", func(t *testing.T) {
		effs, err := c.Process(ctx, tmengine.VoteInput(futureVote))
		require.NoError(t, err)
		require.Empty(t, effs)
	})

	t.Run("buffered inputs replay on StartHeight", func(t *testing.T) {
		effs, err := c.Process(ctx, tmengine.StartHeight(2, fx.ValSet))
		require.NoError(t, err)

		// The buffered vote is WAL-appended and tallied as part of
		// entering height 2.
		var sawBuffered bool
		for _, e := range effs {
			if e.Kind == tmengine.EffectWalAppend &&
				e.WalEntry.Kind == tmwal.KindConsensusMessage &&
				e.WalEntry.ConsensusMessage.SignedVote != nil &&
				e.WalEntry.ConsensusMessage.SignedVote.Vote.Height == 2 {
				sawBuffered = true
			}
		}
		require.True(t, sawBuffered, "buffered height-2 vote must replay on StartHeight(2)")
	})
}

func TestCoordinator_VoteSetRequest(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := tmconsensustest.NewEd25519Fixture(4)
	selfIdx := (fx.ProposerIndex(1, 0) + 1) % 4
	c := newCoordinator(t, ctx, fx, selfIdx)

	_, err := c.Process(ctx, tmengine.StartHeight(1, fx.ValSet))
	require.NoError(t, err)

	otherIdx := (selfIdx + 1) % 4
	sv := fx.PrevoteFor(ctx, otherIdx, 1, 0, tmconsensus.VNil[tmconsensus.Hash]())
	_, err = c.Process(ctx, tmengine.VoteInput(sv))
	require.NoError(t, err)

	effs, err := c.Process(ctx, tmengine.VoteSetRequest(1, 0))
	require.NoError(t, err)
	require.Len(t, effs, 1)
	require.Equal(t, tmengine.EffectSendVoteSetResponse, effs[0].Kind)
	require.Contains(t, effs[0].VoteSetVotes, sv)
}

func TestCoordinator_Rebroadcast(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx := tmconsensustest.NewEd25519Fixture(4)
	selfIdx := (fx.ProposerIndex(1, 0) + 1) % 4
	c := newCoordinator(t, ctx, fx, selfIdx)

	_, err := c.Process(ctx, tmengine.StartHeight(1, fx.ValSet))
	require.NoError(t, err)

	rebroadcastTimeout := tmengine.TimeoutElapsed(
		1, tmconsensus.NewTimeout(0, tmconsensus.TimeoutPrevoteRebroadcast))

	t.Run("nothing to resend before any vote is signed", func(t *testing.T) {
		effs, err := c.Process(ctx, rebroadcastTimeout)
		require.NoError(t, err)

		k := kinds(effs)
		require.Zero(t, k[tmengine.EffectRebroadcast])
		require.Equal(t, 1, k[tmengine.EffectScheduleTimeout], "the cadence is always rearmed")
	})

	// Force a nil prevote so there is a last signed vote.
	effs, err := c.Process(ctx, tmengine.TimeoutElapsed(1, tmconsensus.NewTimeout(0, tmconsensus.TimeoutPropose)))
	require.NoError(t, err)

	var published *tmconsensus.SignedVote
	for _, e := range effs {
		if e.Kind == tmengine.EffectPublish && e.ConsensusMessage.SignedVote != nil {
			published = e.ConsensusMessage.SignedVote
		}
	}
	require.NotNil(t, published)

	t.Run("resends the last signed prevote, never a fresh vote", func(t *testing.T) {
		effs, err := c.Process(ctx, rebroadcastTimeout)
		require.NoError(t, err)

		k := kinds(effs)
		require.Zero(t, k[tmengine.EffectPublish])
		require.Equal(t, 1, k[tmengine.EffectRebroadcast])
		require.Equal(t, 1, k[tmengine.EffectScheduleTimeout])

		for _, e := range effs {
			if e.Kind != tmengine.EffectRebroadcast {
				continue
			}
			require.Equal(t, published, e.ConsensusMessage.SignedVote)
			require.NotNil(t, e.RoundCert, "rebroadcast carries the round certificate")
			require.EqualValues(t, 0, e.RoundCert.Round)
		}
	})
}

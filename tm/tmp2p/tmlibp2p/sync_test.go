package tmlibp2p_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/internal/gtest"
	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmcodec/tmjson"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmconsensus/tmconsensustest"
	"github.com/bft-sm/tmcore/tm/tmp2p"
	"github.com/bft-sm/tmcore/tm/tmp2p/tmlibp2p"
)

type stubSyncSource struct {
	status tmp2p.Status
	values []tmp2p.ValueRecord
	votes  []tmconsensus.SignedVote
}

func (s *stubSyncSource) SyncStatus(context.Context) (tmp2p.Status, error) {
	return s.status, nil
}

func (s *stubSyncSource) DecidedValues(_ context.Context, from, to tmconsensus.Height) ([]tmp2p.ValueRecord, error) {
	var out []tmp2p.ValueRecord
	for _, v := range s.values {
		if v.Height >= from && v.Height <= to {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubSyncSource) VoteSet(context.Context, tmconsensus.Height, tmconsensus.Round) ([]tmconsensus.SignedVote, error) {
	return s.votes, nil
}

func TestSyncService_VoteSetRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := gtest.NewLogger(t)
	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}

	h1, h2, ps1, ps2 := newTestPair(t, ctx)

	fx := tmconsensustest.NewEd25519Fixture(4)
	value := tmconsensustest.MockValue("decided")
	id := value.ID()

	serverVotes := []tmconsensus.SignedVote{
		fx.PrevoteFor(ctx, 0, 5, 1, tmconsensus.Val(id)),
		fx.PrevoteFor(ctx, 1, 5, 1, tmconsensus.VNil[tmconsensus.Hash]()),
	}

	client, err := tmlibp2p.NewSyncService(
		ctx, log, tmlibp2p.DefaultSyncServiceConfig(), h1, ps1, codec, &stubSyncSource{})
	require.NoError(t, err)

	_, err = tmlibp2p.NewSyncService(
		ctx, log, tmlibp2p.DefaultSyncServiceConfig(), h2, ps2, codec,
		&stubSyncSource{votes: serverVotes})
	require.NoError(t, err)

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()

	got, err := client.RequestVoteSet(reqCtx, h2.ID(), 5, 1)
	require.NoError(t, err)
	require.Equal(t, serverVotes, got)
}

func TestSyncService_ValueRangeAndBatchCap(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := gtest.NewLogger(t)
	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}

	h1, h2, ps1, ps2 := newTestPair(t, ctx)

	values := []tmp2p.ValueRecord{
		{Height: 3, ValueBytes: []byte("v3"), Cert: tmcert.CommitCertificate{Height: 3}},
		{Height: 4, ValueBytes: []byte("v4"), Cert: tmcert.CommitCertificate{Height: 4}},
		{Height: 5, ValueBytes: []byte("v5"), Cert: tmcert.CommitCertificate{Height: 5}},
	}

	client, err := tmlibp2p.NewSyncService(
		ctx, log, tmlibp2p.DefaultSyncServiceConfig(), h1, ps1, codec, &stubSyncSource{})
	require.NoError(t, err)

	_, err = tmlibp2p.NewSyncService(
		ctx, log, tmlibp2p.SyncServiceConfig{MaxBatchSize: 2}, h2, ps2, codec,
		&stubSyncSource{values: values})
	require.NoError(t, err)

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()

	got, err := client.RequestValues(reqCtx, h2.ID(), 3, 5)
	require.NoError(t, err)
	require.Len(t, got, 2, "server must cap the batch, requester re-requests the rest")
	require.EqualValues(t, 3, got[0].Height)
	require.EqualValues(t, 4, got[1].Height)
}

func TestSyncService_StatusBroadcast(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := gtest.NewLogger(t)
	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}

	h1, h2, ps1, ps2 := newTestPair(t, ctx)

	announced := tmp2p.Status{TipHeight: 12, HistoryMinHeight: 4}

	svc1, err := tmlibp2p.NewSyncService(
		ctx, log, tmlibp2p.DefaultSyncServiceConfig(), h1, ps1, codec,
		&stubSyncSource{status: announced})
	require.NoError(t, err)

	svc2, err := tmlibp2p.NewSyncService(
		ctx, log, tmlibp2p.DefaultSyncServiceConfig(), h2, ps2, codec, &stubSyncSource{})
	require.NoError(t, err)

	waitForTopicPeer(t, ps1, tmlibp2p.StatusTopic, h2.ID())
	waitForTopicPeer(t, ps2, tmlibp2p.StatusTopic, h1.ID())

	require.NoError(t, svc1.BroadcastStatus(ctx))

	select {
	case got := <-svc2.PeerStatuses():
		require.Equal(t, h1.ID().String(), got.Peer)
		require.Equal(t, announced, got.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("status never arrived at peer")
	}
}

package tmlibp2p_test

import (
	"context"
	"testing"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/internal/gtest"
	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmcodec/tmjson"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmconsensus/tmconsensustest"
	"github.com/bft-sm/tmcore/tm/tmp2p/tmlibp2p"
)

// newTestPair builds two connected hosts with floodsub routers, which
// deliver to all subscribed peers without gossipsub's mesh warm-up.
func newTestPair(t *testing.T, ctx context.Context) (h1, h2 host.Host, ps1, ps2 *pubsub.PubSub) {
	t.Helper()

	h1, err := tmlibp2p.NewHost()
	require.NoError(t, err)
	t.Cleanup(func() { _ = h1.Close() })

	h2, err = tmlibp2p.NewHost()
	require.NoError(t, err)
	t.Cleanup(func() { _ = h2.Close() })

	ps1, err = pubsub.NewFloodSub(ctx, h1)
	require.NoError(t, err)
	ps2, err = pubsub.NewFloodSub(ctx, h2)
	require.NoError(t, err)

	require.NoError(t, tmlibp2p.ConnectToHost(ctx, h1, h2))

	return h1, h2, ps1, ps2
}

// waitForTopicPeer blocks until ps sees want subscribed to topic, the
// deterministic equivalent of the teacher's network Stabilize.
func waitForTopicPeer(t *testing.T, ps *pubsub.PubSub, topic string, want peer.ID) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, p := range ps.ListPeers(topic) {
			if p == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer %s never appeared on topic %s", want, topic)
}

func testVote(fx *tmconsensustest.Fixture, ctx context.Context) tmcodec.ConsensusMessage {
	v := tmconsensustest.MockValue("some value")
	sv := fx.PrevoteFor(ctx, 0, 1, 0, tmconsensus.Val(v.ID()))
	return tmcodec.ConsensusMessage{SignedVote: &sv}
}

func TestConnection_PublishAndReceive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := gtest.NewLogger(t)
	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}

	h1, h2, ps1, ps2 := newTestPair(t, ctx)

	conn1, err := tmlibp2p.NewConnection(ctx, log, h1, ps1, codec)
	require.NoError(t, err)
	conn2, err := tmlibp2p.NewConnection(ctx, log, h2, ps2, codec)
	require.NoError(t, err)

	handler1 := tmconsensustest.NewChannelConsensusHandler(1)
	conn1.SetConsensusHandler(ctx, handler1)
	handler2 := tmconsensustest.NewChannelConsensusHandler(1)
	conn2.SetConsensusHandler(ctx, handler2)

	waitForTopicPeer(t, ps1, tmlibp2p.ConsensusTopic, h2.ID())
	waitForTopicPeer(t, ps2, tmlibp2p.ConsensusTopic, h1.ID())

	fx := tmconsensustest.NewEd25519Fixture(3)
	msg := testVote(fx, ctx)

	conn1.ConsensusBroadcaster().OutgoingConsensusMessages() <- msg

	select {
	case got := <-handler2.IncomingMessages():
		require.Equal(t, msg, got)
	case <-time.After(5 * time.Second):
		t.Fatal("message never arrived at peer")
	}

	// The sender must not hear its own message back.
	select {
	case got := <-handler1.IncomingMessages():
		t.Fatalf("got message %v back on the sending connection", got)
	case <-time.After(25 * time.Millisecond):
	}
}

func TestConnection_DisconnectClosesDisconnected(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := gtest.NewLogger(t)
	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}

	h1, _, ps1, _ := newTestPair(t, ctx)

	conn, err := tmlibp2p.NewConnection(ctx, log, h1, ps1, codec)
	require.NoError(t, err)

	select {
	case <-conn.Disconnected():
		t.Fatal("connection started disconnected")
	default:
	}

	conn.Disconnect()
	conn.Disconnect() // Idempotent.

	select {
	case <-conn.Disconnected():
	case <-time.After(5 * time.Second):
		t.Fatal("Disconnected never closed after Disconnect")
	}
}

func TestConnection_RebroadcastOverStreams(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := gtest.NewLogger(t)
	codec := tmjson.Codec{VC: tmconsensustest.MockValueCodec{}}

	h1, h2, ps1, ps2 := newTestPair(t, ctx)

	conn1, err := tmlibp2p.NewConnection(ctx, log, h1, ps1, codec)
	require.NoError(t, err)
	conn2, err := tmlibp2p.NewConnection(ctx, log, h2, ps2, codec)
	require.NoError(t, err)
	_ = conn1

	handler2 := tmconsensustest.NewChannelConsensusHandler(1)
	conn2.SetConsensusHandler(ctx, handler2)

	fx := tmconsensustest.NewEd25519Fixture(3)
	msg := testVote(fx, ctx)

	tree := tmlibp2p.NewRebroadcastTree(2, []peer.ID{h1.ID(), h2.ID()}, h1.ID())
	require.Equal(t, []peer.ID{h2.ID()}, tree.Children())

	conn1.SendRebroadcast(ctx, msg, tree.Children())

	select {
	case got := <-handler2.IncomingMessages():
		require.Equal(t, msg, got)
	case <-time.After(5 * time.Second):
		t.Fatal("rebroadcast never arrived at child peer")
	}
}

func TestRebroadcastTree_Shape(t *testing.T) {
	t.Parallel()

	peers := make([]peer.ID, 7)
	for i := range peers {
		peers[i] = peer.ID(rune('a' + i))
	}

	root := tmlibp2p.NewRebroadcastTree(2, peers, peers[0])
	require.Equal(t, []peer.ID{peers[1], peers[2]}, root.Children())
	_, hasParent := root.Parent()
	require.False(t, hasParent)

	mid := tmlibp2p.NewRebroadcastTree(2, peers, peers[1])
	require.Equal(t, []peer.ID{peers[3], peers[4]}, mid.Children())
	parent, hasParent := mid.Parent()
	require.True(t, hasParent)
	require.Equal(t, peers[0], parent)

	leaf := tmlibp2p.NewRebroadcastTree(2, peers, peers[5])
	require.Empty(t, leaf.Children())

	stranger := tmlibp2p.NewRebroadcastTree(2, peers, peer.ID("zz"))
	require.Empty(t, stranger.Children())
}

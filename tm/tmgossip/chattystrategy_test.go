package tmgossip_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/internal/gtest"
	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmgossip"
)

type channelBroadcaster chan tmcodec.ConsensusMessage

func (b channelBroadcaster) OutgoingConsensusMessages() chan<- tmcodec.ConsensusMessage {
	return b
}

func TestChattyStrategy_ForwardsEveryUpdate(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(channelBroadcaster, 4)
	s := tmgossip.NewChattyStrategy(ctx, gtest.NewLogger(t), out)

	updates := make(chan tmgossip.Update, 4)
	s.Start(updates)

	sv := tmconsensus.SignedVote{
		Vote: tmconsensus.Vote{
			Type:   tmconsensus.PrevoteType,
			Height: 1,
			Round:  0,
			Value:  tmconsensus.Val(tmconsensus.Hash{0xab}),
		},
		Signature: []byte("sig"),
	}

	updates <- tmgossip.Update{Message: tmcodec.ConsensusMessage{SignedVote: &sv}}
	updates <- tmgossip.Update{Message: tmcodec.ConsensusMessage{SignedVote: &sv}, Rebroadcast: true}

	for range 2 {
		select {
		case got := <-out:
			require.Equal(t, &sv, got.SignedVote)
		case <-time.After(time.Second):
			t.Fatal("update was not forwarded")
		}
	}
}

func TestChattyStrategy_WaitReturnsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	out := make(channelBroadcaster)
	s := tmgossip.NewChattyStrategy(ctx, gtest.NewLogger(t), out)
	s.Start(make(chan tmgossip.Update))

	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}

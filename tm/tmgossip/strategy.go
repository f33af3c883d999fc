// Package tmgossip defines how the engine's outbound consensus traffic
// reaches the network: the runtime funnels every Publish and
// Rebroadcast effect from the coordinator into a channel of [Update]
// values, and a [Strategy] decides what actually goes on the wire.
package tmgossip

import (
	"github.com/bft-sm/tmcore/tm/tmcodec"
)

// Update is one outbound event from the coordinator's effect stream.
type Update struct {
	Message tmcodec.ConsensusMessage

	// Rebroadcast is true when the message is a periodic resend of an
	// already published vote rather than fresh traffic; strategies with
	// a bounded fanout path send these along it instead of re-flooding.
	Rebroadcast bool
}

// Strategy consumes the engine's outbound updates.
//
// Start must be called exactly once; implementations block internally
// until it is. Wait blocks until the strategy's background work has
// finished, which happens when the context its constructor received is
// canceled.
type Strategy interface {
	Start(updates <-chan Update)
	Wait()
}

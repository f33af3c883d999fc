// Package tmp2p defines the interfaces connecting the consensus engine
// to a peer-to-peer network: the Consensus gossip channel's contract
// from the network surface, without binding the engine to any concrete
// transport. The tmlibp2p subpackage provides the libp2p-backed
// implementation.
package tmp2p

import (
	"context"

	"github.com/bft-sm/tmcore/tm/tmcodec"
)

// ConsensusHandler accepts consensus messages arriving from the
// network, after the transport has decoded them. Signature and
// membership verification is the engine's job, not the handler's; the
// transport delivers whatever its peers sent.
type ConsensusHandler interface {
	HandleConsensusMessage(ctx context.Context, msg tmcodec.ConsensusMessage) error
}

// ConsensusBroadcaster is the outbound half of the consensus channel.
// Sends on the returned channel are broadcast to every connected peer;
// the channel is owned by the Connection and must not be closed by the
// caller.
type ConsensusBroadcaster interface {
	OutgoingConsensusMessages() chan<- tmcodec.ConsensusMessage
}

// Connection is one node's attachment to the consensus gossip network.
type Connection interface {
	// ConsensusBroadcaster returns the outbound message channel wrapper.
	ConsensusBroadcaster() ConsensusBroadcaster

	// SetConsensusHandler sets the handler for inbound messages.
	// Messages arriving before a handler is set are dropped; call this
	// before the engine starts processing a height.
	SetConsensusHandler(ctx context.Context, h ConsensusHandler)

	// Disconnect tears the connection down. It is idempotent.
	Disconnect()

	// Disconnected is closed once the connection has fully torn down,
	// whether from Disconnect or from its parent context ending.
	Disconnected() <-chan struct{}
}

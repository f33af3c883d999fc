package tmconsensustest

import (
	"context"

	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmp2p"
)

// ChannelConsensusHandler is a [tmp2p.ConsensusHandler] that simply
// forwards every message to a buffered channel a test can receive from.
type ChannelConsensusHandler struct {
	incoming chan tmcodec.ConsensusMessage
}

var _ tmp2p.ConsensusHandler = (*ChannelConsensusHandler)(nil)

// NewChannelConsensusHandler returns a handler whose channel has the
// given buffer size.
func NewChannelConsensusHandler(bufSize int) *ChannelConsensusHandler {
	return &ChannelConsensusHandler{
		incoming: make(chan tmcodec.ConsensusMessage, bufSize),
	}
}

// HandleConsensusMessage implements [tmp2p.ConsensusHandler].
func (h *ChannelConsensusHandler) HandleConsensusMessage(ctx context.Context, msg tmcodec.ConsensusMessage) error {
	select {
	case h.incoming <- msg:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// IncomingMessages returns the receive side of the handler's channel.
func (h *ChannelConsensusHandler) IncomingMessages() <-chan tmcodec.ConsensusMessage {
	return h.incoming
}

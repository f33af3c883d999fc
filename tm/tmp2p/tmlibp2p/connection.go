// Package tmlibp2p implements [tmp2p.Connection] on top of libp2p:
// gossipsub carries the consensus channel, and direct streams carry the
// periodic rebroadcast along a [gnetdag.FixedTree] fanout instead of
// re-flooding the whole topic.
package tmlibp2p

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/bft-sm/tmcore/internal/gchan"
	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmp2p"
)

// ConsensusTopic is the pubsub topic name for the consensus channel.
const ConsensusTopic = "tmcore/consensus/v1"

// RebroadcastProtocolID is the stream protocol carrying fanout
// rebroadcasts between tree neighbors.
const RebroadcastProtocolID protocol.ID = "/tmcore/rebroadcast/1"

// rebroadcast payloads are length-prefixed; cap them so a misbehaving
// peer cannot make us allocate arbitrarily.
const maxRebroadcastPayload = 1 << 20

// Connection is the libp2p-backed [tmp2p.Connection].
type Connection struct {
	log *slog.Logger

	host  host.Host
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	codec tmcodec.MarshalCodec

	out chan tmcodec.ConsensusMessage

	setHandlerRequests chan tmp2p.ConsensusHandler
	incoming           chan tmcodec.ConsensusMessage

	cancel context.CancelFunc

	disconnectOnce sync.Once
	disconnected   chan struct{}
}

var _ tmp2p.Connection = (*Connection)(nil)

// NewConnection joins h to the consensus topic on ps and starts the
// connection's background work. The connection stops when ctx ends or
// Disconnect is called; h itself remains open either way, since the
// caller owns it.
func NewConnection(
	ctx context.Context,
	log *slog.Logger,
	h host.Host,
	ps *pubsub.PubSub,
	codec tmcodec.MarshalCodec,
) (*Connection, error) {
	topic, err := ps.Join(ConsensusTopic)
	if err != nil {
		return nil, fmt.Errorf("tmlibp2p: joining consensus topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return nil, fmt.Errorf("tmlibp2p: subscribing to consensus topic: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	c := &Connection{
		log: log,

		host:  h,
		topic: topic,
		sub:   sub,

		codec: codec,

		out: make(chan tmcodec.ConsensusMessage, 8),

		setHandlerRequests: make(chan tmp2p.ConsensusHandler),
		incoming:           make(chan tmcodec.ConsensusMessage, 8),

		cancel: cancel,

		disconnected: make(chan struct{}),
	}

	h.SetStreamHandler(RebroadcastProtocolID, c.handleRebroadcastStream)

	go c.recvLoop(ctx)
	go c.mainLoop(ctx)

	return c, nil
}

// ConsensusBroadcaster implements [tmp2p.Connection].
func (c *Connection) ConsensusBroadcaster() tmp2p.ConsensusBroadcaster {
	return broadcaster{out: c.out}
}

type broadcaster struct {
	out chan tmcodec.ConsensusMessage
}

func (b broadcaster) OutgoingConsensusMessages() chan<- tmcodec.ConsensusMessage {
	return b.out
}

// SetConsensusHandler implements [tmp2p.Connection].
func (c *Connection) SetConsensusHandler(ctx context.Context, h tmp2p.ConsensusHandler) {
	_ = gchan.SendC(ctx, c.log, c.setHandlerRequests, h, "setting consensus handler")
}

// Disconnect implements [tmp2p.Connection].
func (c *Connection) Disconnect() {
	c.disconnectOnce.Do(c.cancel)
}

// Disconnected implements [tmp2p.Connection].
func (c *Connection) Disconnected() <-chan struct{} {
	return c.disconnected
}

// recvLoop pumps decoded topic messages into the main loop. It runs
// separately because [pubsub.Subscription.Next] blocks and cannot
// participate in the main loop's select.
func (c *Connection) recvLoop(ctx context.Context) {
	self := c.host.ID()

	for {
		msg, err := c.sub.Next(ctx)
		if err != nil {
			// Context ended or subscription canceled; either way the
			// main loop handles teardown.
			return
		}

		if msg.ReceivedFrom == self {
			continue
		}

		var cm tmcodec.ConsensusMessage
		if err := c.codec.UnmarshalConsensusMessage(msg.Data, &cm); err != nil {
			c.log.Warn("Dropping undecodable consensus message", "from", msg.ReceivedFrom, "err", err)
			continue
		}

		if !gchan.SendC(ctx, c.log, c.incoming, cm, "delivering incoming consensus message") {
			return
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) {
	defer close(c.disconnected)
	defer func() {
		c.host.RemoveStreamHandler(RebroadcastProtocolID)
		c.sub.Cancel()
		_ = c.topic.Close()
	}()

	var handler tmp2p.ConsensusHandler

	for {
		select {
		case <-ctx.Done():
			return

		case h := <-c.setHandlerRequests:
			handler = h

		case cm := <-c.incoming:
			if handler == nil {
				continue
			}
			if err := handler.HandleConsensusMessage(ctx, cm); err != nil {
				c.log.Warn("Consensus handler rejected message", "err", err)
			}

		case cm := <-c.out:
			b, err := c.codec.MarshalConsensusMessage(cm)
			if err != nil {
				c.log.Warn("Dropping unmarshalable outgoing message", "err", err)
				continue
			}
			if err := c.topic.Publish(ctx, b); err != nil {
				c.log.Warn("Failed to publish consensus message", "err", err)
			}
		}
	}
}

// SendRebroadcast sends msg over a direct stream to each of targets,
// rather than re-flooding the gossip topic. The engine's rebroadcast
// cadence calls this with the [RebroadcastTree]'s children.
//
// Failures to individual peers are logged and skipped: rebroadcast is a
// liveness aid, and the next tick retries.
func (c *Connection) SendRebroadcast(ctx context.Context, msg tmcodec.ConsensusMessage, targets []peer.ID) {
	b, err := c.codec.MarshalConsensusMessage(msg)
	if err != nil {
		c.log.Warn("Dropping unmarshalable rebroadcast", "err", err)
		return
	}

	frame := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(frame, uint32(len(b)))
	copy(frame[4:], b)

	for _, p := range targets {
		if err := c.sendRebroadcastTo(ctx, p, frame); err != nil {
			c.log.Debug("Rebroadcast to peer failed", "peer", p, "err", err)
		}
	}
}

func (c *Connection) sendRebroadcastTo(ctx context.Context, p peer.ID, frame []byte) error {
	s, err := c.host.NewStream(ctx, p, RebroadcastProtocolID)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer s.Close()

	if _, err := s.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

func (c *Connection) handleRebroadcastStream(s network.Stream) {
	defer s.Close()

	var lenBuf [4]byte
	if _, err := io.ReadFull(s, lenBuf[:]); err != nil {
		return
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxRebroadcastPayload {
		c.log.Warn("Dropping oversized rebroadcast frame", "peer", s.Conn().RemotePeer(), "len", n)
		return
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(s, payload); err != nil {
		return
	}

	var cm tmcodec.ConsensusMessage
	if err := c.codec.UnmarshalConsensusMessage(payload, &cm); err != nil {
		c.log.Warn("Dropping undecodable rebroadcast", "peer", s.Conn().RemotePeer(), "err", err)
		return
	}

	// Feed through the same inbound path as gossip, so the handler sees
	// one message stream regardless of transport.
	select {
	case c.incoming <- cm:
	case <-c.disconnected:
	}
}

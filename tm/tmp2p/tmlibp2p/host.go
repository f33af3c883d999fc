package tmlibp2p

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
)

// NewHost returns a libp2p host with this module's defaults: loopback
// TCP on an ephemeral port unless the caller's opts say otherwise.
// Callers own the returned host and must Close it.
func NewHost(opts ...libp2p.Option) (host.Host, error) {
	defaults := []libp2p.Option{
		libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
	}
	h, err := libp2p.New(append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("tmlibp2p: building host: %w", err)
	}
	return h, nil
}

// NewGossipSub returns the pubsub router production connections use.
func NewGossipSub(ctx context.Context, h host.Host) (*pubsub.PubSub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("tmlibp2p: building gossipsub: %w", err)
	}
	return ps, nil
}

// ConnectToHost dials dst from src, using dst's own listen addresses.
func ConnectToHost(ctx context.Context, src, dst host.Host) error {
	ai := peer.AddrInfo{ID: dst.ID(), Addrs: dst.Addrs()}
	if err := src.Connect(ctx, ai); err != nil {
		return fmt.Errorf("tmlibp2p: connecting %s to %s: %w", src.ID(), dst.ID(), err)
	}
	return nil
}

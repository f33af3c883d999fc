package tmp2p

import (
	"context"

	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// Status is the periodic sync announcement each node publishes: the
// highest height it has decided, and the lowest height it still retains
// and can serve to others.
type Status struct {
	TipHeight        tmconsensus.Height `json:"tip_height"`
	HistoryMinHeight tmconsensus.Height `json:"history_min_height"`
}

// PeerStatus pairs a Status with the peer that announced it. Peer is
// transport-specific and opaque at this layer; tmlibp2p uses the
// libp2p peer id's string form.
type PeerStatus struct {
	Peer   string
	Status Status
}

// ValueRecord is one decided height as served over the sync channel:
// the raw value bytes plus the commit certificate proving the decision.
// Receivers must verify the certificate before accepting the value.
type ValueRecord struct {
	Height     tmconsensus.Height      `json:"height"`
	ValueBytes []byte                  `json:"value_bytes"`
	Cert       tmcert.CommitCertificate `json:"cert"`
}

// SyncSource answers sync requests out of local state; the block store
// and the engine's vote keeper back it in a real deployment.
type SyncSource interface {
	// SyncStatus reports what this node can serve.
	SyncStatus(ctx context.Context) (Status, error)

	// DecidedValues returns the decided values in [from, to], inclusive,
	// lowest first. Implementations may return fewer than requested;
	// the requester re-requests from the last height it received.
	DecidedValues(ctx context.Context, from, to tmconsensus.Height) ([]ValueRecord, error)

	// VoteSet returns every signed vote this node holds for (h, r).
	VoteSet(ctx context.Context, h tmconsensus.Height, r tmconsensus.Round) ([]tmconsensus.SignedVote, error)
}

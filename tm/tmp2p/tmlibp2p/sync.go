package tmlibp2p

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/bft-sm/tmcore/internal/gchan"
	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmp2p"
)

// SyncProtocolID is the request/response stream protocol for the Sync
// channel: value ranges and vote sets.
const SyncProtocolID protocol.ID = "/tmcore/sync/1"

// StatusTopic carries the periodic Status announcements.
const StatusTopic = "tmcore/sync/status/v1"

// SyncServiceConfig bounds what one response may carry, so a lagging
// requester cannot make a server serialize its whole history at once.
type SyncServiceConfig struct {
	// MaxBatchSize caps the number of values in one ValueResponse.
	MaxBatchSize int
}

// DefaultSyncServiceConfig mirrors a conservative production setting.
func DefaultSyncServiceConfig() SyncServiceConfig {
	return SyncServiceConfig{MaxBatchSize: 64}
}

// SyncService serves and consumes the Sync channel on one host:
// it answers SyncProtocolID streams out of its [tmp2p.SyncSource],
// publishes this node's Status, and surfaces peers' statuses.
type SyncService struct {
	log *slog.Logger

	cfg SyncServiceConfig

	host   host.Host
	codec  tmcodec.MarshalCodec
	source tmp2p.SyncSource

	statusTopic *pubsub.Topic
	statusSub   *pubsub.Subscription

	statuses chan tmp2p.PeerStatus
}

// NewSyncService attaches the sync protocol and status topic to h.
// The service stops when ctx ends.
func NewSyncService(
	ctx context.Context,
	log *slog.Logger,
	cfg SyncServiceConfig,
	h host.Host,
	ps *pubsub.PubSub,
	codec tmcodec.MarshalCodec,
	source tmp2p.SyncSource,
) (*SyncService, error) {
	topic, err := ps.Join(StatusTopic)
	if err != nil {
		return nil, fmt.Errorf("tmlibp2p: joining status topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return nil, fmt.Errorf("tmlibp2p: subscribing to status topic: %w", err)
	}

	s := &SyncService{
		log: log,

		cfg: cfg,

		host:   h,
		codec:  codec,
		source: source,

		statusTopic: topic,
		statusSub:   sub,

		statuses: make(chan tmp2p.PeerStatus, 8),
	}

	h.SetStreamHandler(SyncProtocolID, s.handleStream)

	go s.statusLoop(ctx)

	return s, nil
}

// PeerStatuses returns the stream of Status announcements from other
// peers. The channel is never closed; stop reading when the service's
// context ends.
func (s *SyncService) PeerStatuses() <-chan tmp2p.PeerStatus {
	return s.statuses
}

// BroadcastStatus publishes this node's current status; callers invoke
// it on the configured status interval.
func (s *SyncService) BroadcastStatus(ctx context.Context) error {
	st, err := s.source.SyncStatus(ctx)
	if err != nil {
		return fmt.Errorf("tmlibp2p: reading local sync status: %w", err)
	}

	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("tmlibp2p: marshaling status: %w", err)
	}

	return s.statusTopic.Publish(ctx, b)
}

func (s *SyncService) statusLoop(ctx context.Context) {
	defer func() {
		s.host.RemoveStreamHandler(SyncProtocolID)
		s.statusSub.Cancel()
		_ = s.statusTopic.Close()
	}()

	self := s.host.ID()

	for {
		msg, err := s.statusSub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}

		var st tmp2p.Status
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			s.log.Warn("Dropping undecodable status", "from", msg.ReceivedFrom, "err", err)
			continue
		}

		if !gchan.SendC(ctx, s.log, s.statuses, tmp2p.PeerStatus{
			Peer:   msg.ReceivedFrom.String(),
			Status: st,
		}, "delivering peer status") {
			return
		}
	}
}

// Wire shapes for the request/response streams. Votes travel as
// codec-encoded consensus messages rather than bare JSON, because
// NilOrVal's representation is the codec's concern, not this
// transport's.
type syncRequest struct {
	Kind string `json:"kind"` // "values" | "vote_set"

	From tmconsensus.Height `json:"from,omitempty"`
	To   tmconsensus.Height `json:"to,omitempty"`

	Height tmconsensus.Height `json:"height,omitempty"`
	Round  tmconsensus.Round  `json:"round,omitempty"`
}

type syncResponse struct {
	Error string `json:"error,omitempty"`

	Values []tmp2p.ValueRecord `json:"values,omitempty"`

	VoteMsgs [][]byte `json:"vote_msgs,omitempty"`
}

func (s *SyncService) handleStream(stream network.Stream) {
	defer stream.Close()

	var req syncRequest
	if err := json.NewDecoder(stream).Decode(&req); err != nil {
		return
	}

	ctx := context.Background()

	var resp syncResponse
	switch req.Kind {
	case "values":
		values, err := s.source.DecidedValues(ctx, req.From, req.To)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		if len(values) > s.cfg.MaxBatchSize {
			values = values[:s.cfg.MaxBatchSize]
		}
		resp.Values = values

	case "vote_set":
		votes, err := s.source.VoteSet(ctx, req.Height, req.Round)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		for _, sv := range votes {
			b, err := s.codec.MarshalConsensusMessage(tmcodec.ConsensusMessage{SignedVote: &sv})
			if err != nil {
				s.log.Warn("Skipping unmarshalable vote in vote set response", "err", err)
				continue
			}
			resp.VoteMsgs = append(resp.VoteMsgs, b)
		}

	default:
		resp.Error = fmt.Sprintf("unknown sync request kind %q", req.Kind)
	}

	if err := json.NewEncoder(stream).Encode(resp); err != nil {
		s.log.Debug("Failed to write sync response", "peer", stream.Conn().RemotePeer(), "err", err)
	}
}

func (s *SyncService) roundTrip(ctx context.Context, p peer.ID, req syncRequest) (syncResponse, error) {
	stream, err := s.host.NewStream(ctx, p, SyncProtocolID)
	if err != nil {
		return syncResponse{}, fmt.Errorf("tmlibp2p: opening sync stream: %w", err)
	}
	defer stream.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(dl)
	}

	if err := json.NewEncoder(stream).Encode(req); err != nil {
		return syncResponse{}, fmt.Errorf("tmlibp2p: writing sync request: %w", err)
	}
	if err := stream.CloseWrite(); err != nil {
		return syncResponse{}, fmt.Errorf("tmlibp2p: closing sync request side: %w", err)
	}

	var resp syncResponse
	if err := json.NewDecoder(stream).Decode(&resp); err != nil {
		return syncResponse{}, fmt.Errorf("tmlibp2p: reading sync response: %w", err)
	}
	if resp.Error != "" {
		return syncResponse{}, fmt.Errorf("tmlibp2p: peer rejected sync request: %s", resp.Error)
	}
	return resp, nil
}

// RequestValues asks p for the decided values in [from, to]. The
// response may be shorter than the range; callers re-request from the
// last height received.
func (s *SyncService) RequestValues(ctx context.Context, p peer.ID, from, to tmconsensus.Height) ([]tmp2p.ValueRecord, error) {
	resp, err := s.roundTrip(ctx, p, syncRequest{Kind: "values", From: from, To: to})
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// RequestVoteSet asks p for its votes at (h, r), feeding the engine's
// request/response vote sync mode. The votes are decoded but not
// verified; the engine verifies on receipt like any network vote.
func (s *SyncService) RequestVoteSet(ctx context.Context, p peer.ID, h tmconsensus.Height, r tmconsensus.Round) ([]tmconsensus.SignedVote, error) {
	resp, err := s.roundTrip(ctx, p, syncRequest{Kind: "vote_set", Height: h, Round: r})
	if err != nil {
		return nil, err
	}

	votes := make([]tmconsensus.SignedVote, 0, len(resp.VoteMsgs))
	for _, b := range resp.VoteMsgs {
		var cm tmcodec.ConsensusMessage
		if err := s.codec.UnmarshalConsensusMessage(b, &cm); err != nil {
			return nil, fmt.Errorf("tmlibp2p: decoding vote in vote set response: %w", err)
		}
		if cm.SignedVote == nil {
			return nil, fmt.Errorf("tmlibp2p: vote set response carried a non-vote message")
		}
		votes = append(votes, *cm.SignedVote)
	}
	return votes, nil
}

// Package tmengine implements the multi-height effect/resume
// coordinator of spec §4.5: the per-process orchestrator that wires a
// fresh [tmheight.Driver] in for each height, translates its round
// state machine outputs into [Effect] values the surrounding runtime
// must perform, and folds signature verification, certificate
// verification, signing, and WAL append in locally wherever spec §4.5
// allows synchronous ("trampolined") handling. See DESIGN.md for which
// spec-named effects this collapses into direct, synchronous calls.
package tmengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bft-sm/tmcore/gcrypto"
	"github.com/bft-sm/tmcore/gdriver/gtxbuf"
	"github.com/bft-sm/tmcore/internal/glog"
	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmheight"
	"github.com/bft-sm/tmcore/tm/tmproposal"
	"github.com/bft-sm/tmcore/tm/tmround"
	"github.com/bft-sm/tmcore/tm/tmvotekeeper"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

// WAL is the subset of [*tmwal.FileWAL]'s behavior the Coordinator
// depends on, so tests and alternate backends can supply their own.
type WAL interface {
	StartHeight(h tmconsensus.Height) ([]tmwal.Entry, error)
	Append(e tmwal.Entry) error
}

// Coordinator is the multi-height consensus loop of spec §4.5. A
// Coordinator is not safe for concurrent use; exactly one goroutine may
// call Process at a time, matching every other stateful type in this
// module (spec §5's single-threaded core).
type Coordinator struct {
	cfg    Config
	signer gcrypto.Signer
	wal    WAL
	log    *slog.Logger

	height tmconsensus.Height
	vs     tmconsensus.ValidatorSet
	driver *tmheight.Driver

	lastSignedPrevote   *tmconsensus.SignedVote
	lastSignedPrecommit *tmconsensus.SignedVote

	// pending buffers inputs for heights above the current one
	// (spec §7's Buffered error kind), keyed implicitly by each Input's
	// Height; StartHeight drains the matching entries and rebases the
	// rest forward.
	pending *gtxbuf.Buffer[tmconsensus.Height, Input, tmconsensus.Height]

	decisions map[tmconsensus.Height]tmcert.CommitCertificate
}

// newCoordinator wires a validated configuration together. signer
// signs every vote and proposal this validator casts; wal is appended
// to before any Publish effect for the same message is returned (spec
// §5's WAL-precedes-publish ordering).
func newCoordinator(ctx context.Context, cfg Config, signer gcrypto.Signer, wal WAL, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}

	pending := gtxbuf.New(
		ctx, log.With("sys", "inputbuf"),
		func(_ context.Context, s *tmconsensus.Height, in Input) (*tmconsensus.Height, error) {
			if in.Height <= *s {
				return nil, gtxbuf.TxInvalidError{
					Err: fmt.Errorf("input height %d not above current height %d", in.Height, *s),
				}
			}
			return s, nil
		},
		func(_ context.Context, reject []tmconsensus.Height) func(Input) bool {
			var maxRejected tmconsensus.Height
			for _, h := range reject {
				if h > maxRejected {
					maxRejected = h
				}
			}
			return func(in Input) bool { return in.Height <= maxRejected }
		},
	)
	pending.Initialize(ctx, new(tmconsensus.Height))

	return &Coordinator{
		cfg:       cfg,
		signer:    signer,
		wal:       wal,
		log:       log,
		pending:   pending,
		decisions: make(map[tmconsensus.Height]tmcert.CommitCertificate),
	}
}

// Wait blocks until the Coordinator's background work has stopped;
// initiate a shutdown by canceling the context passed to [New].
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Height returns the height currently being processed.
func (c *Coordinator) Height() tmconsensus.Height { return c.height }

// Decision returns the commit certificate persisted for h, if the
// coordinator has observed h's decision.
func (c *Coordinator) Decision(h tmconsensus.Height) (tmcert.CommitCertificate, bool) {
	cert, ok := c.decisions[h]
	return cert, ok
}

// Evidence returns the equivocation evidence the current height's vote
// keeper has accumulated, or nil before the first StartHeight.
func (c *Coordinator) Evidence() *tmvotekeeper.EvidenceMap {
	if c.driver == nil {
		return nil
	}
	return c.driver.Evidence()
}

// Process is the Coordinator's single entry point (spec §6.1): it
// drives the state forward and returns the effects the runtime must
// perform (network publish, timer scheduling, host calls) or, for a
// few spec-named effects, a trace of work already performed
// synchronously (see the [EffectKind] doc comment).
func (c *Coordinator) Process(ctx context.Context, in Input) ([]Effect, error) {
	if in.Kind == InputStartHeight {
		return c.startHeight(ctx, in.Height, in.ValidatorSet)
	}

	if c.driver == nil {
		return nil, fmt.Errorf("tmengine: Process called before StartHeight")
	}

	if in.Height < c.height {
		// ProtocolDropped (spec §7): an input for a height we have
		// already moved past.
		c.log.Debug("Dropping input for past height", "input_height", in.Height, "current_height", c.height)
		return nil, nil
	}
	if in.Height > c.height {
		// Buffered (spec §7): held until StartHeight replays it.
		if err := c.pending.AddTx(ctx, in); err != nil {
			c.log.Debug("Dropping unbufferable input", "input_height", in.Height, "err", err)
		}
		return nil, nil
	}

	return c.processCurrent(ctx, in)
}

func (c *Coordinator) startHeight(ctx context.Context, h tmconsensus.Height, vs tmconsensus.ValidatorSet) ([]Effect, error) {
	if vs.Count() == 0 {
		return nil, fmt.Errorf("tmengine: starting height %d: %w", h, tmconsensus.ErrValidatorSetNotFound)
	}

	c.height = h
	c.vs = vs
	c.driver = tmheight.New(h, c.cfg.Address, vs, c.cfg.ThresholdParams)
	c.lastSignedPrevote = nil
	c.lastSignedPrecommit = nil

	entries, err := c.wal.StartHeight(h)
	if err != nil {
		return nil, fmt.Errorf("tmengine: starting WAL for height %d: %w", h, err)
	}

	effects := []Effect{cancelAllTimeoutsEffect()}

	if len(entries) == 0 {
		outs := c.driver.StartRound(0)
		more, err := c.translate(ctx, outs, false)
		if err != nil {
			return nil, err
		}
		effects = append(effects, more...)
	} else {
		// A replayed height still enters round 0 first; the replayed
		// entries then re-drive the state machine from there, with
		// every externally visible effect suppressed.
		replayEffects, err := c.replay(c.driver.StartRound(0), entries)
		if err != nil {
			return nil, fmt.Errorf("tmengine: replaying WAL for height %d: %w", h, err)
		}
		effects = append(effects, replayEffects...)
	}

	for _, buffered := range c.pending.Buffered(ctx, nil) {
		if buffered.Height != h {
			continue
		}
		more, err := c.processCurrent(ctx, buffered)
		if err != nil {
			return nil, err
		}
		effects = append(effects, more...)
	}
	if _, err := c.pending.Rebase(ctx, &h, []tmconsensus.Height{h}); err != nil {
		return nil, fmt.Errorf("tmengine: rebasing input buffer to height %d: %w", h, err)
	}

	return effects, nil
}

// replay re-derives the driver's state from entries written before a
// prior crash, suppressing every externally visible effect except the
// single still-pending timeout schedule at the end (spec §5, §8
// scenario S6): re-publishing or re-signing messages we already sent
// before crashing would be a protocol violation, but the driver's
// internal bookkeeping must still reflect every entry. Our own signed
// votes found in the log also restore the rebroadcast state, which is
// exactly how recovery avoids equivocating: the recovered last vote is
// resent, never re-derived.
func (c *Coordinator) replay(initial []tmround.Output, entries []tmwal.Entry) ([]Effect, error) {
	var pendingSchedule *Effect

	trackOutputs := func(outs []tmround.Output) {
		for _, o := range outs {
			switch o.Kind {
			case tmround.OutputScheduleTimeout:
				eff := scheduleTimeoutEffect(o.Timeout)
				pendingSchedule = &eff
			case tmround.OutputGetValueAndScheduleTimeout:
				eff := getValueEffect(o.Height, o.Round, time.Time{})
				pendingSchedule = &eff
			case tmround.OutputNewRound:
				pendingSchedule = nil
			}
		}
	}

	trackOutputs(initial)

	for _, e := range entries {
		var outs []tmround.Output

		switch e.Kind {
		case tmwal.KindConsensusMessage:
			switch {
			case e.ConsensusMessage.SignedVote != nil:
				sv := *e.ConsensusMessage.SignedVote
				if sv.Vote.VoterAddress == c.cfg.Address {
					if sv.Vote.Type == tmconsensus.PrevoteType {
						c.lastSignedPrevote = &sv
					} else {
						c.lastSignedPrecommit = &sv
					}
				}
				outs = c.driver.ReceivedVote(sv)
			case e.ConsensusMessage.SignedProposal != nil:
				outs = c.driver.ReceivedProposal(e.ConsensusMessage.SignedProposal.Proposal, tmproposal.Valid)
			}
		case tmwal.KindTimeout:
			outs = c.driver.TimeoutElapsed(e.Timeout)
		case tmwal.KindProposedValue:
			// A ProposedValue entry on its own carries no round-machine
			// input; it only matters paired with the Proposal entry
			// also logged for the same (height, round), which is
			// replayed above.
			continue
		}

		trackOutputs(outs)
	}

	if pendingSchedule == nil {
		return nil, nil
	}
	return []Effect{*pendingSchedule}, nil
}

func (c *Coordinator) processCurrent(ctx context.Context, in Input) ([]Effect, error) {
	switch in.Kind {
	case InputVote:
		return c.handleVote(ctx, *in.SignedVote)

	case InputProposal:
		return c.handleProposal(ctx, *in.SignedProposal)

	case InputPropose:
		entry := tmwal.ProposedValueEntry(in.ProposedValue)
		if err := c.wal.Append(entry); err != nil {
			return nil, fmt.Errorf("tmengine: appending proposed value to WAL: %w", err)
		}
		outs := c.driver.ProposeValue(in.ProposedValue.Value)
		more, err := c.translate(ctx, outs, false)
		if err != nil {
			return nil, err
		}
		effects := append([]Effect{walAppendEffect(entry)}, more...)
		// The value arrived in time, so the propose timer armed alongside
		// the GetValue effect has nothing left to guard.
		effects = append(effects, cancelTimeoutEffect(
			tmconsensus.NewTimeout(in.ProposedValue.Round, tmconsensus.TimeoutPropose)))
		return effects, nil

	case InputProposedValue:
		// The value's content is now known; if the application signs a
		// standalone Proposal per cfg.ValuePayload, the caller derives
		// that SignedProposal and feeds it back in as InputProposal.
		// PartsOnly deployments instead synthesize an internal,
		// locally-trusted proposal here directly, matching spec §4.5's
		// "synthesize and sign an internal proposal" bullet for
		// ProposedValue delivered with origin=Sync or parts-only.
		entry := tmwal.ProposedValueEntry(in.ProposedValue)
		if err := c.wal.Append(entry); err != nil {
			return nil, fmt.Errorf("tmengine: appending proposed value to WAL: %w", err)
		}
		p := tmconsensus.Proposal{
			Height:          in.ProposedValue.Height,
			Round:           in.ProposedValue.Round,
			Value:           in.ProposedValue.Value,
			PolRound:        tmconsensus.NilRound,
			ProposerAddress: c.vs.Proposer(in.ProposedValue.Height, in.ProposedValue.Round).Address,
		}
		outs := c.driver.ReceivedProposal(p, tmproposal.Valid)
		more, err := c.translate(ctx, outs, false)
		if err != nil {
			return nil, err
		}
		return append([]Effect{walAppendEffect(entry)}, more...), nil

	case InputCommitCertificate:
		return c.handleCommitCertificate(*in.CommitCert)

	case InputPolkaCertificate:
		return c.handlePolkaCertificate(*in.PolkaCert)

	case InputRoundCertificate:
		return c.handleRoundCertificate(*in.RoundCert)

	case InputTimeoutElapsed:
		return c.handleTimeout(in.Timeout)

	case InputVoteSetRequest:
		// A peer that fell behind asks for our votes at (height, round);
		// answer out of the keeper's stored signed votes (spec §6.2).
		prevotes := c.driver.ReceivedPrevotes(in.VoteSetRound)
		precommits := c.driver.ReceivedPrecommits(in.VoteSetRound)
		votes := make([]tmconsensus.SignedVote, 0, len(prevotes)+len(precommits))
		votes = append(append(votes, prevotes...), precommits...)
		return []Effect{sendVoteSetResponseEffect(c.height, in.VoteSetRound, votes)}, nil

	case InputVoteSetResponse:
		var effects []Effect
		for _, sv := range in.VoteSetVotes {
			more, err := c.handleVote(ctx, sv)
			if err != nil {
				return nil, err
			}
			effects = append(effects, more...)
		}
		return effects, nil

	default:
		return nil, fmt.Errorf("tmengine: unhandled input kind %d", in.Kind)
	}
}

func (c *Coordinator) handleVote(ctx context.Context, sv tmconsensus.SignedVote) ([]Effect, error) {
	val, ok := c.vs.GetByAddress(sv.Vote.VoterAddress)
	if !ok {
		c.log.Warn("Dropping vote",
			"addr", glog.Hex(sv.Vote.VoterAddress), "err", tmconsensus.ErrUnknownValidator)
		return nil, nil
	}

	// Spec §4.5: "every vote ... received from the network is verified
	// exactly once, when first observed". A vote this validator itself
	// produced (fed back by the driver's own recursion) never reaches
	// this path; only network-origin votes are verified here.
	if !val.PubKey.Verify(sv.Vote.SignContent(), sv.Signature) {
		c.log.Warn("Dropping vote",
			"addr", glog.Hex(sv.Vote.VoterAddress), "err", tmconsensus.ErrInvalidSignature)
		return nil, nil
	}

	var effects []Effect

	// First seen: append to the WAL before the driver can react (spec
	// §2's receive path, scenario S6). Duplicates are not re-logged.
	if !c.driver.HasVote(sv) {
		entry := tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{SignedVote: &sv})
		if err := c.wal.Append(entry); err != nil {
			return nil, fmt.Errorf("tmengine: appending received vote to WAL: %w", err)
		}
		effects = append(effects, walAppendEffect(entry))
	}

	outs := c.driver.ReceivedVote(sv)
	more, err := c.translate(ctx, outs, false)
	if err != nil {
		return nil, err
	}
	return append(effects, more...), nil
}

func (c *Coordinator) handleProposal(ctx context.Context, sp tmconsensus.SignedProposal) ([]Effect, error) {
	proposer, ok := c.vs.GetByAddress(sp.Proposal.ProposerAddress)
	if !ok {
		c.log.Warn("Dropping proposal",
			"addr", glog.Hex(sp.Proposal.ProposerAddress), "err", tmconsensus.ErrUnknownValidator)
		return nil, nil
	}
	if proposer.Address != c.vs.Proposer(sp.Proposal.Height, sp.Proposal.Round).Address {
		c.log.Warn("Dropping proposal from non-proposer", "addr", glog.Hex(sp.Proposal.ProposerAddress))
		return nil, nil
	}
	if !proposer.PubKey.Verify(sp.Proposal.SignContent(), sp.Signature) {
		c.log.Warn("Dropping proposal",
			"addr", glog.Hex(sp.Proposal.ProposerAddress), "err", tmconsensus.ErrInvalidSignature)
		return nil, nil
	}

	var effects []Effect

	if !c.driver.HasProposal(sp.Proposal) {
		entry := tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{SignedProposal: &sp})
		if err := c.wal.Append(entry); err != nil {
			return nil, fmt.Errorf("tmengine: appending received proposal to WAL: %w", err)
		}
		effects = append(effects, walAppendEffect(entry))
	}

	// The host is the one that judges a proposal's application-level
	// validity (spec §4.4's Validity); at the wire layer, a
	// signature-verified proposal is provisionally Valid until the host
	// says otherwise via a later InputProposal carrying the same
	// identity but judged invalid. This coordinator has no host
	// callback wired for that judgment, so it treats every
	// signature-valid proposal as Valid, matching tmheight's own
	// ReceivedProposal default path for network input.
	outs := c.driver.ReceivedProposal(sp.Proposal, tmproposal.Valid)
	more, err := c.translate(ctx, outs, false)
	if err != nil {
		return nil, err
	}
	return append(effects, more...), nil
}

func (c *Coordinator) handleCommitCertificate(cert tmcert.CommitCertificate) ([]Effect, error) {
	if cert.Height != c.height {
		return nil, nil
	}
	if err := cert.Verify(c.vs, c.cfg.ThresholdParams.CertificateQuorum); err != nil {
		c.log.Warn("Dropping invalid commit certificate", "err", err)
		return nil, nil
	}

	signers := make([]tmconsensus.Address, len(cert.Signatures))
	for i, s := range cert.Signatures {
		signers[i] = s.Address
	}

	outs := c.driver.ApplyCommitCertificatePrecommits(cert.Round, cert.ValueID, signers)
	return c.translate(context.Background(), outs, false)
}

func (c *Coordinator) handlePolkaCertificate(cert tmcert.PolkaCertificate) ([]Effect, error) {
	if cert.Height != c.height {
		return nil, nil
	}
	if err := cert.Verify(c.vs, c.cfg.ThresholdParams.Quorum); err != nil {
		c.log.Warn("Dropping invalid polka certificate", "err", err)
		return nil, nil
	}

	var effects []Effect
	for _, s := range cert.Signatures {
		sv := tmconsensus.SignedVote{
			Vote: tmconsensus.Vote{
				Type:         tmconsensus.PrevoteType,
				Height:       cert.Height,
				Round:        cert.Round,
				Value:        tmconsensus.Val(cert.ValueID),
				VoterAddress: s.Address,
			},
			Signature: s.Signature,
		}
		outs := c.driver.ReceivedVote(sv)
		more, err := c.translate(context.Background(), outs, false)
		if err != nil {
			return nil, err
		}
		effects = append(effects, more...)
	}
	return effects, nil
}

func (c *Coordinator) handleRoundCertificate(cert tmcert.RoundCertificate) ([]Effect, error) {
	if cert.Height != c.height {
		return nil, nil
	}

	threshold := c.cfg.ThresholdParams.Honest
	if cert.Kind == tmcert.RoundCertificatePrecommit {
		threshold = c.cfg.ThresholdParams.CertificateQuorum
	}
	if err := cert.Verify(c.vs, threshold); err != nil {
		c.log.Warn("Dropping invalid round certificate", "err", err)
		return nil, nil
	}

	var effects []Effect
	for _, s := range cert.Signatures {
		sv := tmconsensus.SignedVote{
			Vote: tmconsensus.Vote{
				Type:         s.VoteType,
				Height:       cert.Height,
				Round:        cert.Round,
				Value:        s.ValueID,
				VoterAddress: s.Address,
			},
			Signature: s.Signature,
		}
		outs := c.driver.ReceivedVote(sv)
		more, err := c.translate(context.Background(), outs, false)
		if err != nil {
			return nil, err
		}
		effects = append(effects, more...)
	}
	return effects, nil
}

func (c *Coordinator) handleTimeout(t tmconsensus.Timeout) ([]Effect, error) {
	switch t.Kind {
	case tmconsensus.TimeoutPrevoteRebroadcast:
		return c.rebroadcast(t, c.lastSignedPrevote)
	case tmconsensus.TimeoutPrecommitRebroadcast:
		return c.rebroadcast(t, c.lastSignedPrecommit)
	case tmconsensus.TimeoutPrevoteTimeLimit, tmconsensus.TimeoutPrecommitTimeLimit:
		// Liveness backstops with no round-machine correspondent; a
		// deployment that wires these schedules its own recovery input
		// (typically a fresh RoundSkip derived from a round certificate
		// request) rather than expecting the coordinator to act alone.
		return nil, nil
	}

	// Round-machine timeouts are WAL entries of their own (spec §6.4,
	// scenario S6), so that replay re-fires them in order.
	entry := tmwal.TimeoutEntry(t)
	if err := c.wal.Append(entry); err != nil {
		return nil, fmt.Errorf("tmengine: appending timeout to WAL: %w", err)
	}
	effects := []Effect{walAppendEffect(entry)}

	outs := c.driver.TimeoutElapsed(t)
	more, err := c.translate(context.Background(), outs, false)
	if err != nil {
		return nil, err
	}
	effects = append(effects, more...)

	if t.Kind == tmconsensus.TimeoutCommit {
		effects = append(effects, getValidatorSetEffect(c.height.Next()))
	}

	return effects, nil
}

// rebroadcast never produces a fresh vote (spec §5): it resends
// whatever was last signed, paired with a skip/precommit round
// certificate so peers that fell behind can catch up without a
// request/response round trip.
func (c *Coordinator) rebroadcast(t tmconsensus.Timeout, last *tmconsensus.SignedVote) ([]Effect, error) {
	if c.cfg.VoteSyncMode == RequestResponse {
		// Request/response mode solicits the missing votes directly
		// instead of resending ours.
		return []Effect{
			getVoteSetEffect(c.height, c.driver.CurrentRound()),
			scheduleTimeoutEffect(t),
		}, nil
	}

	if last == nil {
		return []Effect{scheduleTimeoutEffect(t)}, nil
	}

	msg := tmcodec.ConsensusMessage{SignedVote: last}

	var votes []tmconsensus.SignedVote
	if last.Vote.Type == tmconsensus.PrevoteType {
		votes = c.driver.ReceivedPrevotes(last.Vote.Round)
	} else {
		votes = c.driver.ReceivedPrecommits(last.Vote.Round)
	}
	kind := tmcert.RoundCertificateSkip
	if last.Vote.Type == tmconsensus.PrecommitType {
		kind = tmcert.RoundCertificatePrecommit
	}
	rc := tmcert.NewRoundCertificate(c.height, last.Vote.Round, kind, votes)

	return []Effect{
		rebroadcastEffect(msg, &rc),
		scheduleTimeoutEffect(t),
	}, nil
}

// translate walks a batch of round-machine outputs -- already flattened
// through the driver's own recursion (new rounds, our own proposal/vote
// being re-ingested) -- into coordinator effects, in order, signing and
// appending to the WAL as it goes. suppressPublish is unused by callers
// today (replay takes its own simpler path) but kept so a future
// resumed-from-certificate path can reuse this without duplicating it.
func (c *Coordinator) translate(ctx context.Context, outs []tmround.Output, suppressPublish bool) ([]Effect, error) {
	var effects []Effect

	for _, o := range outs {
		switch o.Kind {
		case tmround.OutputNewRound:
			effects = append(effects,
				resetTimeoutsEffect(),
				startRoundEffect(c.height, o.Round, c.vs.Proposer(c.height, o.Round).Address),
			)

		case tmround.OutputProposal:
			p := *o.Proposal
			sig, err := c.signer.Sign(ctx, p.SignContent())
			if err != nil {
				return nil, fmt.Errorf("tmengine: signing proposal: %w", err)
			}
			sp := tmconsensus.SignedProposal{Proposal: p, Signature: sig}

			entry := tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{SignedProposal: &sp})
			if err := c.wal.Append(entry); err != nil {
				return nil, fmt.Errorf("tmengine: appending proposal to WAL: %w", err)
			}
			effects = append(effects, walAppendEffect(entry))

			if !suppressPublish && c.cfg.ValuePayload != PartsOnly {
				effects = append(effects, publishEffect(tmcodec.ConsensusMessage{SignedProposal: &sp}))
			}
			if !suppressPublish && c.cfg.ValuePayload != ProposalOnly && !p.PolRound.IsNil() {
				// Re-proposing a value locked in an earlier round: the
				// parts were streamed back then, so ask the host to
				// republish them for validators that missed the stream.
				effects = append(effects, restreamValueEffect(
					c.height, p.Round, p.PolRound, p.ProposerAddress, p.ValueID()))
			}

		case tmround.OutputVote:
			v := *o.Vote
			sig, err := c.signer.Sign(ctx, v.SignContent())
			if err != nil {
				return nil, fmt.Errorf("tmengine: signing vote: %w", err)
			}
			sv := tmconsensus.SignedVote{Vote: v, Signature: sig}

			if v.Type == tmconsensus.PrevoteType {
				c.lastSignedPrevote = &sv
			} else {
				c.lastSignedPrecommit = &sv
			}

			entry := tmwal.ConsensusMessageEntry(tmcodec.ConsensusMessage{SignedVote: &sv})
			if err := c.wal.Append(entry); err != nil {
				return nil, fmt.Errorf("tmengine: appending vote to WAL: %w", err)
			}
			effects = append(effects, walAppendEffect(entry))

			// The driver tallied our vote before it was signed; resubmit
			// the signed copy so the keeper's stored votes carry the
			// signature a certificate will need. The resubmission is
			// idempotent and produces no new outputs.
			_ = c.driver.ReceivedVote(sv)

			if !suppressPublish {
				effects = append(effects, publishEffect(tmcodec.ConsensusMessage{SignedVote: &sv}))
			}

		case tmround.OutputScheduleTimeout:
			effects = append(effects, scheduleTimeoutEffect(o.Timeout))

		case tmround.OutputGetValueAndScheduleTimeout:
			deadline := time.Now().Add(c.cfg.Timeouts.Duration(o.Timeout.Kind, o.Round))
			effects = append(effects,
				scheduleTimeoutEffect(o.Timeout),
				getValueEffect(o.Height, o.Round, deadline),
			)

		case tmround.OutputDecision:
			rv := *o.Decision
			votes := c.driver.ReceivedPrecommits(rv.Round)
			cert := tmcert.NewCommitCertificate(c.height, rv.Round, rv.Value.ID(), votes)
			if err := cert.Verify(c.vs, c.cfg.ThresholdParams.CertificateQuorum); err != nil {
				return nil, fmt.Errorf("tmengine: our own decision failed certificate verification: %w", err)
			}
			c.decisions[c.height] = cert

			extensions := make([][]byte, 0, len(cert.Signatures))
			for _, s := range cert.Signatures {
				if len(s.Extension) > 0 {
					extensions = append(extensions, s.Extension)
				}
			}

			effects = append(effects,
				scheduleTimeoutEffect(tmconsensus.NewTimeout(rv.Round, tmconsensus.TimeoutCommit)),
				decideEffect(cert, extensions),
			)
		}
	}

	return effects, nil
}

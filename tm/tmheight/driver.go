package tmheight

import (
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmproposal"
	"github.com/bft-sm/tmcore/tm/tmround"
	"github.com/bft-sm/tmcore/tm/tmvotekeeper"
)

// Driver is the per-height composition of spec §4.4: one round state
// machine plus the vote keeper and proposal keeper that feed it. It is
// the single owner of all three; the coordinator never reaches into
// them directly, only through Driver's methods.
//
// A Driver is not safe for concurrent use; the coordinator that owns it
// is expected to serialize access, matching every other kernel type in
// this module.
type Driver struct {
	height     tmconsensus.Height
	ourAddress tmconsensus.Address
	vs         tmconsensus.ValidatorSet

	currentRound tmconsensus.Round
	state        tmround.State

	votes     *tmvotekeeper.Keeper
	proposals *tmproposal.Keeper
}

// New returns a Driver for height, not yet in any round; call StartRound
// to begin round 0.
func New(height tmconsensus.Height, ourAddress tmconsensus.Address, vs tmconsensus.ValidatorSet, params tmconsensus.ThresholdParams) *Driver {
	return &Driver{
		height:       height,
		ourAddress:   ourAddress,
		vs:           vs,
		currentRound: tmconsensus.NilRound,
		state:        tmround.NewState(height, tmconsensus.NilRound),
		votes:        tmvotekeeper.New(vs.TotalVotingPower(), params),
		proposals:    tmproposal.New(),
	}
}

// Height returns the height this Driver was constructed for.
func (d *Driver) Height() tmconsensus.Height { return d.height }

// CurrentRound returns the round currently being processed.
func (d *Driver) CurrentRound() tmconsensus.Round { return d.currentRound }

// State returns a snapshot of the current round state.
func (d *Driver) State() tmround.State { return d.state }

// ValidatorSet returns the validator set this height was constructed
// with.
func (d *Driver) ValidatorSet() tmconsensus.ValidatorSet { return d.vs }

// Decision returns the decided value for this height, if the driver has
// reached one in any round.
func (d *Driver) Decision() (tmconsensus.RoundValue, bool) {
	if d.state.Decision == nil {
		return tmconsensus.RoundValue{}, false
	}
	return *d.state.Decision, true
}

// HasVote reports whether sv has already been recorded.
func (d *Driver) HasVote(sv tmconsensus.SignedVote) bool { return d.votes.HasVote(sv) }

// HasProposal reports whether a proposal with p's (round, value id) has
// already been stored, used by the coordinator's first-seen WAL rule.
func (d *Driver) HasProposal(p tmconsensus.Proposal) bool {
	_, ok := d.proposals.Get(p.Round, p.ValueID())
	return ok
}

// Evidence returns the equivocation evidence accumulated across every
// round of this height.
func (d *Driver) Evidence() *tmvotekeeper.EvidenceMap { return d.votes.Evidence() }

// ReceivedPrevotes returns the signed prevotes recorded for round, for
// PolkaCertificate construction.
func (d *Driver) ReceivedPrevotes(round tmconsensus.Round) []tmconsensus.SignedVote {
	return d.votes.ReceivedPrevotes(round)
}

// ReceivedPrecommits returns the signed precommits recorded for round,
// for CommitCertificate construction.
func (d *Driver) ReceivedPrecommits(round tmconsensus.Round) []tmconsensus.SignedVote {
	return d.votes.ReceivedPrecommits(round)
}

// StartRound begins round, carrying Locked/Valid forward from whatever
// round the driver was previously in, and returns every output produced
// transitively (spec §4.1's lock/valid carry-forward invariant).
func (d *Driver) StartRound(round tmconsensus.Round) []tmround.Output {
	return d.startRound(round)
}

func (d *Driver) startRound(round tmconsensus.Round) []tmround.Output {
	next := tmround.NewState(d.height, round)
	next.Locked = d.state.Locked
	next.Valid = d.state.Valid
	d.state = next
	d.currentRound = round

	return d.apply(d.info(), tmround.NewRound(round))
}

// ProposeValue delivers the value the host built for us to propose,
// following a GetValueAndScheduleTimeout output.
func (d *Driver) ProposeValue(v tmconsensus.Value) []tmround.Output {
	return d.apply(d.info(), tmround.ProposeValue(v))
}

// ReceivedProposal stores p at the validity the host determined for it,
// and derives whichever round-machine input p now justifies, combining
// it with any threshold the vote keeper already reached (spec §4.4).
func (d *Driver) ReceivedProposal(p tmconsensus.Proposal, validity tmproposal.Validity) []tmround.Output {
	if p.Height != d.height {
		return nil
	}

	d.proposals.Add(p, validity)
	return d.deriveAndApplyProposal(p, validity)
}

// ReceivedVote applies sv to the vote keeper, using the voting power sv's
// signer carries in this height's validator set, and derives whichever
// round-machine input the resulting threshold event justifies.
func (d *Driver) ReceivedVote(sv tmconsensus.SignedVote) []tmround.Output {
	if sv.Vote.Height != d.height {
		return nil
	}

	val, ok := d.vs.GetByAddress(sv.Vote.VoterAddress)
	if !ok {
		return nil
	}

	return d.applyVote(sv, val.Power())
}

// ApplyCommitCertificatePrecommits treats a verified CommitCertificate's
// signers as though their precommits had each been received directly,
// per spec §4.4's CommitCertificate bullet: "treat as if all component
// precommits had been received; issue ProposalAndPrecommitValue once the
// matching proposal is present." The certificate is assumed already
// verified by the caller (tmcert.CommitCertificate.Verify); this method
// does not re-check signatures.
func (d *Driver) ApplyCommitCertificatePrecommits(round tmconsensus.Round, valueID tmconsensus.Hash, signers []tmconsensus.Address) []tmround.Output {
	var outs []tmround.Output

	for _, addr := range signers {
		val, ok := d.vs.GetByAddress(addr)
		if !ok {
			continue
		}

		sv := tmconsensus.SignedVote{
			Vote: tmconsensus.Vote{
				Type:         tmconsensus.PrecommitType,
				Height:       d.height,
				Round:        round,
				Value:        tmconsensus.Val(valueID),
				VoterAddress: addr,
			},
		}
		outs = append(outs, d.applyVote(sv, val.Power())...)
	}

	if p, ok := d.proposals.ValidProposal(round, valueID); ok {
		outs = append(outs, d.apply(d.info(), tmround.ProposalAndPrecommitValue(p))...)
	}

	return outs
}

// TimeoutElapsed translates a fired timeout into the corresponding
// round-machine input. Timeout kinds that exist only for coordinator-
// level liveness (rebroadcast, time-limit timers; spec §6.3) are not
// round-machine inputs and are silently ignored here.
func (d *Driver) TimeoutElapsed(t tmconsensus.Timeout) []tmround.Output {
	if t.Round != d.currentRound {
		return nil
	}

	switch t.Kind {
	case tmconsensus.TimeoutPropose:
		return d.apply(d.info(), tmround.TimeoutPropose())
	case tmconsensus.TimeoutPrevote:
		return d.apply(d.info(), tmround.TimeoutPrevote())
	case tmconsensus.TimeoutPrecommit:
		return d.apply(d.info(), tmround.TimeoutPrecommit())
	case tmconsensus.TimeoutCommit:
		return d.apply(d.info(), tmround.TimeoutCommit())
	default:
		return nil
	}
}

func (d *Driver) info() tmround.Info {
	return tmround.Info{
		CurrentRound:    d.currentRound,
		OurAddress:      d.ourAddress,
		ProposerAddress: d.vs.Proposer(d.height, d.currentRound).Address,
	}
}

func (d *Driver) apply(info tmround.Info, input tmround.Input) []tmround.Output {
	tr := tmround.Apply(d.state, info, input)
	d.state = tr.Next

	if tr.Output == nil {
		return nil
	}
	return d.handleOutput(*tr.Output)
}

// handleOutput records the output and, for outputs that the driver
// itself must react to before the coordinator sees them (a new round
// starting, our own proposal or vote needing to be fed back in so the
// round machine and vote keeper stay in sync with what we just said),
// recurses. This mirrors original_source's
// consensus/src/handle/driver.rs process_driver_output, folded into the
// driver itself rather than split across a coordinator layer, since
// spec §4.4 describes the driver's validator_set and vote/proposal
// keepers as already co-located.
func (d *Driver) handleOutput(out tmround.Output) []tmround.Output {
	outs := []tmround.Output{out}

	switch out.Kind {
	case tmround.OutputNewRound:
		outs = append(outs, d.startRound(out.Round)...)

	case tmround.OutputProposal:
		d.proposals.Add(*out.Proposal, tmproposal.Valid)
		outs = append(outs, d.deriveAndApplyProposal(*out.Proposal, tmproposal.Valid)...)

	case tmround.OutputVote:
		if val, ok := d.vs.GetByAddress(out.Vote.VoterAddress); ok {
			outs = append(outs, d.applyVote(tmconsensus.SignedVote{Vote: *out.Vote}, val.Power())...)
		}
	}

	return outs
}

func (d *Driver) applyVote(sv tmconsensus.SignedVote, weight uint64) []tmround.Output {
	kOuts := d.votes.AddVote(sv, weight, d.currentRound)

	var outs []tmround.Output
	for _, ko := range kOuts {
		outs = append(outs, d.deriveAndApplyKeeperOutput(ko, sv.Vote.Round)...)
	}
	return outs
}

// deriveAndApplyProposal implements spec §4.4's Proposal bullet: combine
// the newly stored proposal with whatever the vote keeper already knows.
func (d *Driver) deriveAndApplyProposal(p tmconsensus.Proposal, validity tmproposal.Validity) []tmround.Output {
	if validity == tmproposal.Invalid {
		if p.Round != d.currentRound {
			return nil
		}
		return d.apply(d.info(), tmround.ProposalInvalid())
	}

	id := p.ValueID()

	if d.votes.IsThresholdMet(p.Round, tmconsensus.PrecommitType, tmconsensus.ThValue(id)) {
		return d.apply(d.info(), tmround.ProposalAndPrecommitValue(p))
	}

	if !p.PolRound.IsNil() {
		if p.PolRound < d.currentRound &&
			d.votes.IsThresholdMet(p.PolRound, tmconsensus.PrevoteType, tmconsensus.ThValue(id)) {
			return d.apply(d.info(), tmround.ProposalAndPolkaPrevious(p))
		}
		// The cited round hasn't reached its polka yet (or it refers to
		// the future): the proposal is stored, and the combination will
		// be derived later from the vote side in
		// deriveAndApplyKeeperOutput once that threshold arrives.
		return nil
	}

	if p.Round != d.currentRound {
		return nil
	}

	// A plain first-time proposal always goes through the Propose-step
	// transition first (spec §4.1: Proposal(p) requires step=Propose),
	// even when the prevote quorum for its value was already reached
	// before the proposal arrived. Once that lands us in Prevote,
	// ProposalAndPolkaCurrent's own precondition is satisfied, so we
	// chain into it immediately rather than waiting for a vote that may
	// never come (every validator may already have voted).
	outs := d.apply(d.info(), tmround.ReceivedProposal(p))
	if d.votes.IsThresholdMet(p.Round, tmconsensus.PrevoteType, tmconsensus.ThValue(id)) {
		outs = append(outs, d.apply(d.info(), tmround.ProposalAndPolkaCurrent(p))...)
	}
	return outs
}

// deriveAndApplyKeeperOutput implements spec §4.4's Vote bullet: combine
// a freshly-crossed vote-keeper threshold with any proposal already on
// file for the value it names. round is the round the vote (and hence
// the threshold) belongs to; it is not carried on every
// [tmvotekeeper.Output] kind, so the caller supplies it.
func (d *Driver) deriveAndApplyKeeperOutput(ko tmvotekeeper.Output, round tmconsensus.Round) []tmround.Output {
	if round != d.currentRound && ko.Kind != tmvotekeeper.OutputPolkaValue &&
		ko.Kind != tmvotekeeper.OutputPrecommitValue && ko.Kind != tmvotekeeper.OutputSkipRound {
		return nil
	}

	switch ko.Kind {
	case tmvotekeeper.OutputPolkaAny:
		return d.apply(d.info(), tmround.PolkaAny())

	case tmvotekeeper.OutputPolkaNil:
		return d.apply(d.info(), tmround.PolkaNil())

	case tmvotekeeper.OutputPrecommitAny:
		return d.apply(d.info(), tmround.PrecommitAny())

	case tmvotekeeper.OutputPolkaValue:
		if round == d.currentRound {
			p, ok := d.proposals.ValidProposal(round, ko.ValueHash)
			if !ok {
				return nil
			}
			// A proposal citing an earlier round's polka never goes
			// through the plain Proposal transition (spec §4.1 requires
			// pol_round = Nil for that), so if we're still at Propose the
			// pending transition is ProposalAndPolkaPrevious, not this
			// one, regardless of what later crossed threshold in the
			// current round.
			if !p.PolRound.IsNil() && d.state.Step == tmconsensus.StepPropose {
				if d.votes.IsThresholdMet(p.PolRound, tmconsensus.PrevoteType, tmconsensus.ThValue(ko.ValueHash)) {
					return d.apply(d.info(), tmround.ProposalAndPolkaPrevious(p))
				}
				return nil
			}
			return d.apply(d.info(), tmround.ProposalAndPolkaCurrent(p))
		}
		if round < d.currentRound {
			if p, ok := d.proposals.ValidProposal(d.currentRound, ko.ValueHash); ok && p.PolRound == round {
				return d.apply(d.info(), tmround.ProposalAndPolkaPrevious(p))
			}
		}
		return nil

	case tmvotekeeper.OutputPrecommitValue:
		if p, ok := d.proposals.ValidProposal(round, ko.ValueHash); ok {
			return d.apply(d.info(), tmround.ProposalAndPrecommitValue(p))
		}
		return nil

	case tmvotekeeper.OutputSkipRound:
		return d.apply(d.info(), tmround.RoundSkip(ko.Round))

	default:
		return nil
	}
}

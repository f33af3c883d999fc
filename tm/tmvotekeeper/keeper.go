package tmvotekeeper

import (
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmvote"
)

type emittedKey struct {
	kind  OutputKind
	value tmconsensus.Hash
}

// perRound is the vote keeper's bookkeeping for a single round: the
// prevote and precommit tallies, the distinct-address weights used for
// skip-round detection, which output kinds have already been emitted,
// and the raw signed votes retained for certificate construction.
type perRound struct {
	prevotes   *tmvote.Count
	precommits *tmvote.Count

	prevoteByAddr   map[tmconsensus.Address]tmconsensus.SignedVote
	precommitByAddr map[tmconsensus.Address]tmconsensus.SignedVote

	// addressesWeights tracks, per validator, the weight it contributed
	// the first time it voted in this round (either type) -- used only
	// to compute the cross-type distinct-address weight for skip-round
	// detection, per spec §4.2's Skip threshold.
	addressesWeights map[tmconsensus.Address]uint64

	emitted map[emittedKey]struct{}

	receivedPrevotes   []tmconsensus.SignedVote
	receivedPrecommits []tmconsensus.SignedVote
}

func newPerRound() *perRound {
	return &perRound{
		prevotes:         tmvote.NewCount(),
		precommits:       tmvote.NewCount(),
		prevoteByAddr:    make(map[tmconsensus.Address]tmconsensus.SignedVote),
		precommitByAddr:  make(map[tmconsensus.Address]tmconsensus.SignedVote),
		addressesWeights: make(map[tmconsensus.Address]uint64),
		emitted:          make(map[emittedKey]struct{}),
	}
}

func (pr *perRound) countFor(t tmconsensus.VoteType) *tmvote.Count {
	if t == tmconsensus.PrevoteType {
		return pr.prevotes
	}
	return pr.precommits
}

func (pr *perRound) byAddrFor(t tmconsensus.VoteType) map[tmconsensus.Address]tmconsensus.SignedVote {
	if t == tmconsensus.PrevoteType {
		return pr.prevoteByAddr
	}
	return pr.precommitByAddr
}

// upgradeSignature replaces the stored, unsigned copy of sv's vote with
// the signed one, in both the per-address index and the received list.
func (pr *perRound) upgradeSignature(sv tmconsensus.SignedVote) {
	pr.byAddrFor(sv.Vote.Type)[sv.Vote.VoterAddress] = sv

	received := pr.receivedPrevotes
	if sv.Vote.Type == tmconsensus.PrecommitType {
		received = pr.receivedPrecommits
	}
	for i, existing := range received {
		if existing.Vote.VoterAddress == sv.Vote.VoterAddress {
			received[i] = sv
			return
		}
	}
}

func (pr *perRound) distinctWeight() uint64 {
	var sum uint64
	for _, w := range pr.addressesWeights {
		sum += w
	}
	return sum
}

// Keeper tallies every vote the driver forwards to it, across every
// round of a single height, and emits threshold events at most once
// each (spec §4.3).
type Keeper struct {
	totalVotingPower uint64
	params           tmconsensus.ThresholdParams

	perRound map[tmconsensus.Round]*perRound
	evidence *EvidenceMap
}

// New returns an empty Keeper for a height whose validator set carries
// totalVotingPower, using params to detect thresholds.
func New(totalVotingPower uint64, params tmconsensus.ThresholdParams) *Keeper {
	return &Keeper{
		totalVotingPower: totalVotingPower,
		params:           params,
		perRound:         make(map[tmconsensus.Round]*perRound),
		evidence:         newEvidenceMap(),
	}
}

func (k *Keeper) round(r tmconsensus.Round) *perRound {
	pr, ok := k.perRound[r]
	if !ok {
		pr = newPerRound()
		k.perRound[r] = pr
	}
	return pr
}

// Evidence returns the equivocation evidence accumulated so far.
func (k *Keeper) Evidence() *EvidenceMap {
	return k.evidence
}

// HasVote reports whether sv (compared by voter address, type, round,
// and value) has already been recorded, used by the coordinator to
// decide whether a vote needs to be appended to the WAL (spec §6.4,
// §9's WAL-append-before-publish rule only applies to not-yet-seen
// votes).
func (k *Keeper) HasVote(sv tmconsensus.SignedVote) bool {
	pr, ok := k.perRound[sv.Vote.Round]
	if !ok {
		return false
	}
	byAddr := pr.byAddrFor(sv.Vote.Type)
	existing, ok := byAddr[sv.Vote.VoterAddress]
	if !ok {
		return false
	}
	return existing.Vote.Value == sv.Vote.Value
}

// AddVote applies sv, carrying the given validator weight, and returns
// every threshold event it newly crosses.
//
// Spec §4.3 describes apply_vote as returning a single Option<Output>;
// this adapts that to a slice since a single vote can simultaneously
// cross a value/nil/any threshold in its own round *and* trigger a
// cross-round skip, and silently picking one over the other would drop
// real, actionable events for the driver.
func (k *Keeper) AddVote(sv tmconsensus.SignedVote, weight uint64, currentRound tmconsensus.Round) []Output {
	pr := k.round(sv.Vote.Round)

	byAddr := pr.byAddrFor(sv.Vote.Type)
	if existing, ok := byAddr[sv.Vote.VoterAddress]; ok {
		if existing.Vote.Value == sv.Vote.Value {
			// Idempotent resubmission: no new tally, no new evidence.
			// One exception: our own votes are tallied before the signer
			// has produced their signature, so a resubmission that adds
			// the missing signature upgrades the stored copy in place,
			// keeping the received-vote lists usable for certificate
			// construction.
			if len(existing.Signature) == 0 && len(sv.Signature) > 0 {
				pr.upgradeSignature(sv)
			}
			return nil
		}

		k.evidence.add(sv.Vote.VoterAddress, existing, sv)
		return nil
	}

	byAddr[sv.Vote.VoterAddress] = sv
	pr.countFor(sv.Vote.Type).Add(sv.Vote.Value, sv.Vote.VoterAddress, weight)

	if sv.Vote.Type == tmconsensus.PrevoteType {
		pr.receivedPrevotes = append(pr.receivedPrevotes, sv)
	} else {
		pr.receivedPrecommits = append(pr.receivedPrecommits, sv)
	}

	if _, ok := pr.addressesWeights[sv.Vote.VoterAddress]; !ok {
		pr.addressesWeights[sv.Vote.VoterAddress] = weight
	}

	var outputs []Output

	th := pr.countFor(sv.Vote.Type).Threshold(sv.Vote.Value, k.params.Quorum, k.totalVotingPower)
	if out, ok := thresholdToOutput(sv.Vote.Type, th); ok {
		key := emittedKey{kind: out.Kind, value: out.ValueHash}
		if _, already := pr.emitted[key]; !already {
			pr.emitted[key] = struct{}{}
			outputs = append(outputs, out)
		}
	}

	if sv.Vote.Round > currentRound {
		skipKey := emittedKey{kind: OutputSkipRound}
		if _, already := pr.emitted[skipKey]; !already {
			if k.params.Honest.IsMet(pr.distinctWeight(), k.totalVotingPower) {
				pr.emitted[skipKey] = struct{}{}
				outputs = append(outputs, Output{Kind: OutputSkipRound, Round: sv.Vote.Round})
			}
		}
	}

	return outputs
}

// IsThresholdMet reports whether round has reached threshold for
// vote type t, without re-emitting an event.
func (k *Keeper) IsThresholdMet(round tmconsensus.Round, t tmconsensus.VoteType, threshold tmconsensus.Threshold) bool {
	pr, ok := k.perRound[round]
	if !ok {
		return false
	}

	var value tmconsensus.NilOrVal[tmconsensus.Hash]
	switch threshold.Kind {
	case tmconsensus.ThresholdValue:
		value = tmconsensus.Val(threshold.ValueHash)
	case tmconsensus.ThresholdNil:
		value = tmconsensus.VNil[tmconsensus.Hash]()
	default:
		// Any/Unreached/Skip aren't evaluated against a specific value.
	}

	got := pr.countFor(t).Threshold(value, k.params.Quorum, k.totalVotingPower)
	return got == threshold
}

// ReceivedPrevotes returns the signed prevotes recorded for round, in
// arrival order, for certificate construction.
func (k *Keeper) ReceivedPrevotes(round tmconsensus.Round) []tmconsensus.SignedVote {
	pr, ok := k.perRound[round]
	if !ok {
		return nil
	}
	return pr.receivedPrevotes
}

// ReceivedPrecommits returns the signed precommits recorded for round,
// in arrival order, for certificate construction.
func (k *Keeper) ReceivedPrecommits(round tmconsensus.Round) []tmconsensus.SignedVote {
	pr, ok := k.perRound[round]
	if !ok {
		return nil
	}
	return pr.receivedPrecommits
}

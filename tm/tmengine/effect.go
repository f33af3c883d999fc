package tmengine

import (
	"time"

	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

// EffectKind enumerates the effects [Coordinator.Process] can return
// (spec §4.5, §6.1). A handful of spec-named effects -- SignVote,
// SignProposal, VerifySignature, VerifyCertificate -- are not
// represented here: the Coordinator discharges them synchronously
// against its injected [Signer] and the validator set's public keys
// before Process returns (spec §4.5's "trampolined" handling, and
// §5's observation that signature/certificate checks are local, fast,
// and never block on I/O), so there is nothing left for the runtime
// to do with them. See DESIGN.md for the full reasoning.
type EffectKind uint8

const (
	// EffectScheduleTimeout asks the runtime to arm a timer identified
	// by (Timeout.Kind, Timeout.Round); firing it later becomes a
	// TimeoutElapsed input.
	EffectScheduleTimeout EffectKind = iota + 1
	// EffectCancelTimeout cancels a single previously scheduled timer
	// by identity; a cancel after the timer already fired is a no-op.
	EffectCancelTimeout
	// EffectCancelAllTimeouts cancels every timer for the height, used
	// when StartHeight begins a new height.
	EffectCancelAllTimeouts
	// EffectResetTimeouts cancels every timer for the prior round when
	// a new round begins.
	EffectResetTimeouts

	// EffectStartRound informs the runtime that round Round of Height
	// has begun, with ProposerAddress as its proposer; used for
	// logging/metrics, not for driving consensus itself.
	EffectStartRound

	// EffectPublish asks the runtime to broadcast ConsensusMessage on
	// the Consensus gossip channel (spec §6.2).
	EffectPublish
	// EffectRebroadcast asks the runtime to resend ConsensusMessage
	// (the last signed vote) and, if set, RoundCert, on the periodic
	// rebroadcast cadence; it never represents a fresh vote.
	EffectRebroadcast

	// EffectGetValue asks the host to build a value for (Height,
	// Round) by Deadline; the result arrives back as a later Propose
	// input, not as a resume (spec §6.1's resume-kind list has no
	// "Value" variant).
	EffectGetValue
	// EffectRestreamValue asks the host to republish proposal parts
	// for an earlier value.
	EffectRestreamValue
	// EffectGetValidatorSet asks the host for the validator set active
	// at Height; emitted when the commit timeout fires, for the next
	// height.
	EffectGetValidatorSet

	// EffectDecide asks the host to persist CommitCert and, if
	// present, Extensions, committing Height (spec §6.3 Decide).
	EffectDecide

	// EffectWalAppend records that WalEntry was appended to the WAL
	// before this Process call returned; spec §5's WAL-precedes-publish
	// ordering is an invariant of the Coordinator's internal call
	// order, and this effect is the externally observable trace of it.
	EffectWalAppend

	// EffectGetVoteSet asks sync machinery to request peers' votes for
	// (Height, Round); emitted in RequestResponse vote-sync mode when a
	// rebroadcast timer fires.
	EffectGetVoteSet
	// EffectSendVoteSetResponse asks the runtime to send VoteSetVotes
	// in response to a previously received VoteSetRequest.
	EffectSendVoteSetResponse
)

// Effect is a single unit of work [Coordinator.Process] asks the
// runtime to perform, or a trace record of work already performed
// synchronously. Only the fields relevant to Kind are meaningful.
type Effect struct {
	Kind EffectKind

	Height          tmconsensus.Height
	Round           tmconsensus.Round
	ProposerAddress tmconsensus.Address

	Timeout tmconsensus.Timeout

	Deadline time.Time

	ValidRound tmconsensus.Round
	ValueID    tmconsensus.Hash

	ConsensusMessage *tmcodec.ConsensusMessage
	RoundCert        *tmcert.RoundCertificate

	CommitCert *tmcert.CommitCertificate
	Extensions [][]byte

	WalEntry *tmwal.Entry

	VoteSetVotes []tmconsensus.SignedVote
}

func scheduleTimeoutEffect(t tmconsensus.Timeout) Effect {
	return Effect{Kind: EffectScheduleTimeout, Timeout: t}
}

func cancelTimeoutEffect(t tmconsensus.Timeout) Effect {
	return Effect{Kind: EffectCancelTimeout, Timeout: t}
}

func cancelAllTimeoutsEffect() Effect { return Effect{Kind: EffectCancelAllTimeouts} }

func resetTimeoutsEffect() Effect { return Effect{Kind: EffectResetTimeouts} }

func startRoundEffect(h tmconsensus.Height, r tmconsensus.Round, proposer tmconsensus.Address) Effect {
	return Effect{Kind: EffectStartRound, Height: h, Round: r, ProposerAddress: proposer}
}

func publishEffect(m tmcodec.ConsensusMessage) Effect {
	return Effect{Kind: EffectPublish, ConsensusMessage: &m}
}

func rebroadcastEffect(m tmcodec.ConsensusMessage, rc *tmcert.RoundCertificate) Effect {
	return Effect{Kind: EffectRebroadcast, ConsensusMessage: &m, RoundCert: rc}
}

func getValueEffect(h tmconsensus.Height, r tmconsensus.Round, deadline time.Time) Effect {
	return Effect{Kind: EffectGetValue, Height: h, Round: r, Deadline: deadline}
}

func restreamValueEffect(h tmconsensus.Height, r, validRound tmconsensus.Round, proposer tmconsensus.Address, valueID tmconsensus.Hash) Effect {
	return Effect{
		Kind: EffectRestreamValue, Height: h, Round: r,
		ProposerAddress: proposer, ValidRound: validRound, ValueID: valueID,
	}
}

func getValidatorSetEffect(h tmconsensus.Height) Effect {
	return Effect{Kind: EffectGetValidatorSet, Height: h}
}

func decideEffect(cert tmcert.CommitCertificate, extensions [][]byte) Effect {
	return Effect{Kind: EffectDecide, Height: cert.Height, CommitCert: &cert, Extensions: extensions}
}

func walAppendEffect(e tmwal.Entry) Effect {
	return Effect{Kind: EffectWalAppend, WalEntry: &e}
}

func getVoteSetEffect(h tmconsensus.Height, r tmconsensus.Round) Effect {
	return Effect{Kind: EffectGetVoteSet, Height: h, Round: r}
}

func sendVoteSetResponseEffect(h tmconsensus.Height, r tmconsensus.Round, votes []tmconsensus.SignedVote) Effect {
	return Effect{Kind: EffectSendVoteSetResponse, Height: h, Round: r, VoteSetVotes: votes}
}

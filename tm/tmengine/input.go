package tmengine

import (
	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

// InputKind enumerates the Coordinator's input vocabulary (spec §4.5).
type InputKind uint8

const (
	// InputStartHeight resets the driver for Height against
	// ValidatorSet, replays any buffered inputs for it, and schedules
	// the propose timeout; if we are proposer it also asks the host for
	// a value.
	InputStartHeight InputKind = iota + 1
	// InputVote delivers a signed vote received from the network.
	InputVote
	// InputProposal delivers a signed proposal received from the
	// network.
	InputProposal
	// InputPropose is the proposer path: Value is a value the local
	// host built (directly, or via a prior EffectGetValue).
	InputPropose
	// InputProposedValue delivers a value whose content became known
	// to the host, from consensus or sync.
	InputProposedValue
	// InputCommitCertificate delivers a verified-on-receipt commit
	// certificate.
	InputCommitCertificate
	// InputPolkaCertificate delivers a verified-on-receipt polka
	// certificate.
	InputPolkaCertificate
	// InputRoundCertificate delivers a verified-on-receipt round
	// certificate (skip evidence or precommit rebroadcast evidence).
	InputRoundCertificate
	// InputTimeoutElapsed delivers a previously scheduled timer firing.
	InputTimeoutElapsed
	// InputVoteSetResponse delivers a peer's answer to a
	// VoteSetRequest; its votes are reapplied individually.
	InputVoteSetResponse
	// InputVoteSetRequest delivers a peer's request for our votes at
	// (Height, VoteSetRound); answered with a SendVoteSetResponse
	// effect.
	InputVoteSetRequest
)

// Input is a single event delivered to [Coordinator.Process]. Only the
// field(s) relevant to Kind are meaningful.
type Input struct {
	Kind InputKind

	Height       tmconsensus.Height
	ValidatorSet tmconsensus.ValidatorSet

	SignedVote     *tmconsensus.SignedVote
	SignedProposal *tmconsensus.SignedProposal

	Value tmconsensus.Value

	ProposedValue tmwal.ProposedValue

	CommitCert *tmcert.CommitCertificate
	PolkaCert  *tmcert.PolkaCertificate
	RoundCert  *tmcert.RoundCertificate

	Timeout tmconsensus.Timeout

	VoteSetRound tmconsensus.Round
	VoteSetVotes []tmconsensus.SignedVote
}

// StartHeight begins height h against validator set vs.
func StartHeight(h tmconsensus.Height, vs tmconsensus.ValidatorSet) Input {
	return Input{Kind: InputStartHeight, Height: h, ValidatorSet: vs}
}

// VoteInput delivers a signed vote from the network.
func VoteInput(sv tmconsensus.SignedVote) Input {
	return Input{Kind: InputVote, Height: sv.Vote.Height, SignedVote: &sv}
}

// ProposalInput delivers a signed proposal from the network.
func ProposalInput(sp tmconsensus.SignedProposal) Input {
	return Input{Kind: InputProposal, Height: sp.Proposal.Height, SignedProposal: &sp}
}

// Propose delivers a value the local host built for height h, round r.
func Propose(h tmconsensus.Height, r tmconsensus.Round, v tmconsensus.Value) Input {
	return Input{Kind: InputPropose, Height: h, ProposedValue: tmwal.ProposedValue{Height: h, Round: r, Value: v}}
}

// ProposedValueInput delivers a value whose content the host now knows.
func ProposedValueInput(pv tmwal.ProposedValue) Input {
	return Input{Kind: InputProposedValue, Height: pv.Height, ProposedValue: pv}
}

// CommitCertificateInput delivers a verified commit certificate.
func CommitCertificateInput(c tmcert.CommitCertificate) Input {
	return Input{Kind: InputCommitCertificate, Height: c.Height, CommitCert: &c}
}

// PolkaCertificateInput delivers a verified polka certificate.
func PolkaCertificateInput(c tmcert.PolkaCertificate) Input {
	return Input{Kind: InputPolkaCertificate, Height: c.Height, PolkaCert: &c}
}

// RoundCertificateInput delivers a verified round certificate.
func RoundCertificateInput(c tmcert.RoundCertificate) Input {
	return Input{Kind: InputRoundCertificate, Height: c.Height, RoundCert: &c}
}

// TimeoutElapsed delivers a fired timer.
func TimeoutElapsed(h tmconsensus.Height, t tmconsensus.Timeout) Input {
	return Input{Kind: InputTimeoutElapsed, Height: h, Timeout: t}
}

// VoteSetResponse delivers a peer's reply to a VoteSetRequest.
func VoteSetResponse(h tmconsensus.Height, r tmconsensus.Round, votes []tmconsensus.SignedVote) Input {
	return Input{Kind: InputVoteSetResponse, Height: h, VoteSetRound: r, VoteSetVotes: votes}
}

// VoteSetRequest delivers a peer's request for our votes at (h, r).
func VoteSetRequest(h tmconsensus.Height, r tmconsensus.Round) Input {
	return Input{Kind: InputVoteSetRequest, Height: h, VoteSetRound: r}
}

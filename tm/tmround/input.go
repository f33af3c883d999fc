package tmround

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// InputKind enumerates the round state machine's exhaustive input
// vocabulary (spec §4.1).
type InputKind uint8

const (
	InputNewRound InputKind = iota + 1
	InputProposeValue
	InputProposal
	InputProposalAndPolkaPrevious
	InputProposalInvalid
	InputPolkaValue
	InputPolkaAny
	InputPolkaNil
	InputProposalAndPolkaCurrent
	InputPrecommitAny
	InputProposalAndPrecommitValue
	InputPrecommitValue
	InputRoundSkip
	InputTimeoutPropose
	InputTimeoutPrevote
	InputTimeoutPrecommit
	InputTimeoutCommit
)

// String implements fmt.Stringer.
func (k InputKind) String() string {
	switch k {
	case InputNewRound:
		return "NewRound"
	case InputProposeValue:
		return "ProposeValue"
	case InputProposal:
		return "Proposal"
	case InputProposalAndPolkaPrevious:
		return "ProposalAndPolkaPrevious"
	case InputProposalInvalid:
		return "ProposalInvalid"
	case InputPolkaValue:
		return "PolkaValue"
	case InputPolkaAny:
		return "PolkaAny"
	case InputPolkaNil:
		return "PolkaNil"
	case InputProposalAndPolkaCurrent:
		return "ProposalAndPolkaCurrent"
	case InputPrecommitAny:
		return "PrecommitAny"
	case InputProposalAndPrecommitValue:
		return "ProposalAndPrecommitValue"
	case InputPrecommitValue:
		return "PrecommitValue"
	case InputRoundSkip:
		return "RoundSkip"
	case InputTimeoutPropose:
		return "TimeoutPropose"
	case InputTimeoutPrevote:
		return "TimeoutPrevote"
	case InputTimeoutPrecommit:
		return "TimeoutPrecommit"
	case InputTimeoutCommit:
		return "TimeoutCommit"
	default:
		return "InputKind(unknown)"
	}
}

// Input is a single event delivered to [Apply]. Only the fields
// relevant to Kind are meaningful; see the constructor functions below.
type Input struct {
	Kind InputKind

	Round     tmconsensus.Round     // NewRound, RoundSkip
	Value     tmconsensus.Value    // ProposeValue
	Proposal  *tmconsensus.Proposal // Proposal* kinds
	ValueHash tmconsensus.Hash      // PolkaValue, PrecommitValue
}

func NewRound(r tmconsensus.Round) Input { return Input{Kind: InputNewRound, Round: r} }

func ProposeValue(v tmconsensus.Value) Input { return Input{Kind: InputProposeValue, Value: v} }

func ReceivedProposal(p tmconsensus.Proposal) Input {
	return Input{Kind: InputProposal, Proposal: &p}
}

func ProposalAndPolkaPrevious(p tmconsensus.Proposal) Input {
	return Input{Kind: InputProposalAndPolkaPrevious, Proposal: &p}
}

func ProposalInvalid() Input { return Input{Kind: InputProposalInvalid} }

func PolkaValue(id tmconsensus.Hash) Input {
	return Input{Kind: InputPolkaValue, ValueHash: id}
}

func PolkaAny() Input { return Input{Kind: InputPolkaAny} }

func PolkaNil() Input { return Input{Kind: InputPolkaNil} }

func ProposalAndPolkaCurrent(p tmconsensus.Proposal) Input {
	return Input{Kind: InputProposalAndPolkaCurrent, Proposal: &p}
}

func PrecommitAny() Input { return Input{Kind: InputPrecommitAny} }

func ProposalAndPrecommitValue(p tmconsensus.Proposal) Input {
	return Input{Kind: InputProposalAndPrecommitValue, Proposal: &p}
}

func PrecommitValue(id tmconsensus.Hash) Input {
	return Input{Kind: InputPrecommitValue, ValueHash: id}
}

func RoundSkip(r tmconsensus.Round) Input { return Input{Kind: InputRoundSkip, Round: r} }

func TimeoutPropose() Input { return Input{Kind: InputTimeoutPropose} }

func TimeoutPrevote() Input { return Input{Kind: InputTimeoutPrevote} }

func TimeoutPrecommit() Input { return Input{Kind: InputTimeoutPrecommit} }

func TimeoutCommit() Input { return Input{Kind: InputTimeoutCommit} }

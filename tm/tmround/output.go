package tmround

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// OutputKind enumerates the round state machine's outputs (spec §4.1).
type OutputKind uint8

const (
	OutputNewRound OutputKind = iota + 1
	OutputProposal
	OutputVote
	OutputScheduleTimeout
	OutputGetValueAndScheduleTimeout
	OutputDecision
)

// Output is a single effect-free result of [Apply]. Only the fields
// relevant to Kind are meaningful.
type Output struct {
	Kind OutputKind

	Height   tmconsensus.Height
	Round    tmconsensus.Round
	Proposal *tmconsensus.Proposal
	Vote     *tmconsensus.Vote
	Timeout  tmconsensus.Timeout
	Decision *tmconsensus.RoundValue
}

func newRoundOutput(r tmconsensus.Round) Output {
	return Output{Kind: OutputNewRound, Round: r}
}

func proposalOutput(p tmconsensus.Proposal) Output {
	return Output{Kind: OutputProposal, Proposal: &p}
}

func voteOutput(v tmconsensus.Vote) Output {
	return Output{Kind: OutputVote, Vote: &v}
}

func scheduleTimeoutOutput(t tmconsensus.Timeout) Output {
	return Output{Kind: OutputScheduleTimeout, Timeout: t}
}

func getValueOutput(h tmconsensus.Height, r tmconsensus.Round, t tmconsensus.Timeout) Output {
	return Output{Kind: OutputGetValueAndScheduleTimeout, Height: h, Round: r, Timeout: t}
}

func decisionOutput(rv tmconsensus.RoundValue) Output {
	return Output{Kind: OutputDecision, Decision: &rv}
}

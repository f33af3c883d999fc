package tmround

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// State is the round state of spec §3: everything the automaton needs
// to decide its next transition for a single (height, round).
//
// polkaAnyScheduled and precommitAnyScheduled back the "first time"
// qualifier on the PolkaAny/PrecommitAny transitions (spec §4.1): a
// ScheduleTimeout(Prevote|Precommit) output fires once per round, not
// once per PolkaAny/PrecommitAny input.
type State struct {
	Height tmconsensus.Height
	Round  tmconsensus.Round
	Step   tmconsensus.Step

	Proposal *tmconsensus.Proposal

	Locked *tmconsensus.RoundValue
	Valid  *tmconsensus.RoundValue

	Decision *tmconsensus.RoundValue

	LastPrevote   *tmconsensus.Vote
	LastPrecommit *tmconsensus.Vote

	polkaAnyScheduled     bool
	precommitAnyScheduled bool
}

// NewState returns the Unstarted state for (height, round).
func NewState(h tmconsensus.Height, r tmconsensus.Round) State {
	return State{Height: h, Round: r, Step: tmconsensus.StepUnstarted}
}

// Info carries the context Apply needs beyond the State itself: the
// round currently tracked by the driver, and the addresses needed to
// tell whether we are the proposer for this round.
type Info struct {
	CurrentRound    tmconsensus.Round
	OurAddress      tmconsensus.Address
	ProposerAddress tmconsensus.Address
}

// IsProposer reports whether we are the proposer under info.
func (i Info) IsProposer() bool {
	return i.OurAddress == i.ProposerAddress
}

// Transition is the result of [Apply]: the next state, plus an output
// if this step produced one. Not every transition produces an output.
type Transition struct {
	Next   State
	Output *Output
}

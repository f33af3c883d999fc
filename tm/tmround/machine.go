package tmround

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// Apply is the round state machine's single entry point: a pure
// function from (state, info, input) to the next state and, possibly,
// an output. It never performs I/O and never reads the clock; timeouts
// arrive as inputs (TimeoutPropose etc.) rather than being measured
// here.
func Apply(state State, info Info, input Input) Transition {
	switch input.Kind {
	case InputNewRound:
		return applyNewRound(state, info, input.Round)
	case InputProposeValue:
		return applyProposeValue(state, info, input.Value)
	case InputProposal:
		return applyProposal(state, info, *input.Proposal)
	case InputProposalAndPolkaPrevious:
		return applyProposalAndPolkaPrevious(state, info, *input.Proposal)
	case InputProposalInvalid:
		return applyProposalInvalid(state, info)
	case InputPolkaAny:
		return applyPolkaAny(state)
	case InputPolkaNil:
		return applyPolkaNil(state, info)
	case InputPolkaValue:
		// A bare quorum-for-value with no proposal in hand yet does not
		// by itself advance the step; the driver holds this until it
		// can pair it with the stored proposal (spec §4.4). Until then,
		// the round machine treats it as a no-op.
		return Transition{Next: state}
	case InputProposalAndPolkaCurrent:
		return applyProposalAndPolkaCurrent(state, info, *input.Proposal)
	case InputPrecommitAny:
		return applyPrecommitAny(state)
	case InputPrecommitValue:
		return Transition{Next: state}
	case InputProposalAndPrecommitValue:
		return applyProposalAndPrecommitValue(state, *input.Proposal)
	case InputRoundSkip:
		return applyRoundSkip(state, input.Round)
	case InputTimeoutPropose:
		return applyTimeoutPropose(state, info)
	case InputTimeoutPrevote:
		return applyTimeoutPrevote(state, info)
	case InputTimeoutPrecommit:
		return applyTimeoutPrecommit(state)
	case InputTimeoutCommit:
		// The driver, not the round machine, advances to the next
		// height on TimeoutCommit (spec §4.1); nothing changes here.
		return Transition{Next: state}
	default:
		return Transition{Next: state}
	}
}

func applyNewRound(state State, info Info, r tmconsensus.Round) Transition {
	if state.Step != tmconsensus.StepUnstarted {
		return Transition{Next: state}
	}

	next := state
	next.Round = r
	next.Step = tmconsensus.StepPropose

	if info.IsProposer() {
		if next.Valid != nil {
			out := proposalOutput(tmconsensus.Proposal{
				Height:          next.Height,
				Round:           r,
				Value:           next.Valid.Value,
				PolRound:        next.Valid.Round,
				ProposerAddress: info.OurAddress,
			})
			return Transition{Next: next, Output: &out}
		}

		out := getValueOutput(next.Height, r, tmconsensus.NewTimeout(r, tmconsensus.TimeoutPropose))
		return Transition{Next: next, Output: &out}
	}

	out := scheduleTimeoutOutput(tmconsensus.NewTimeout(r, tmconsensus.TimeoutPropose))
	return Transition{Next: next, Output: &out}
}

// applyProposeValue handles the proposer's own value becoming available
// after a GetValueAndScheduleTimeout output (spec §4.4's ProposeValue
// driver input), emitting the Proposal output NewRound would have
// emitted directly had the value already been on hand.
func applyProposeValue(state State, info Info, v tmconsensus.Value) Transition {
	if state.Step != tmconsensus.StepPropose {
		return Transition{Next: state}
	}

	out := proposalOutput(tmconsensus.Proposal{
		Height:          state.Height,
		Round:           state.Round,
		Value:           v,
		PolRound:        tmconsensus.NilRound,
		ProposerAddress: info.OurAddress,
	})
	return Transition{Next: state, Output: &out}
}

func applyProposal(state State, info Info, p tmconsensus.Proposal) Transition {
	if state.Step != tmconsensus.StepPropose {
		return Transition{Next: state}
	}
	if !p.PolRound.IsNil() {
		return Transition{Next: state}
	}

	next := state
	next.Proposal = &p

	value := tmconsensus.VNil[tmconsensus.Hash]()
	if next.Locked == nil || next.Locked.Value.ID() == p.Value.ID() {
		value = tmconsensus.Val(p.ValueID())
	}

	return prevoteTransition(next, info, value)
}

func applyProposalAndPolkaPrevious(state State, info Info, p tmconsensus.Proposal) Transition {
	if state.Step != tmconsensus.StepPropose {
		return Transition{Next: state}
	}
	if !(p.PolRound < info.CurrentRound) {
		return Transition{Next: state}
	}

	next := state
	next.Proposal = &p

	value := tmconsensus.VNil[tmconsensus.Hash]()
	if next.Locked == nil || next.Locked.Round <= p.PolRound || next.Locked.Value.ID() == p.Value.ID() {
		value = tmconsensus.Val(p.ValueID())
	}

	return prevoteTransition(next, info, value)
}

func applyProposalInvalid(state State, info Info) Transition {
	if state.Step != tmconsensus.StepPropose {
		return Transition{Next: state}
	}
	return prevoteTransition(state, info, tmconsensus.VNil[tmconsensus.Hash]())
}

func prevoteTransition(state State, info Info, value tmconsensus.NilOrVal[tmconsensus.Hash]) Transition {
	next := state
	next.Step = tmconsensus.StepPrevote

	v := tmconsensus.Vote{
		Type:         tmconsensus.PrevoteType,
		Height:       next.Height,
		Round:        next.Round,
		Value:        value,
		VoterAddress: info.OurAddress,
	}
	next.LastPrevote = &v

	out := voteOutput(v)
	return Transition{Next: next, Output: &out}
}

func applyPolkaAny(state State) Transition {
	if state.Step != tmconsensus.StepPrevote {
		return Transition{Next: state}
	}
	if state.polkaAnyScheduled {
		return Transition{Next: state}
	}

	next := state
	next.polkaAnyScheduled = true

	out := scheduleTimeoutOutput(tmconsensus.NewTimeout(next.Round, tmconsensus.TimeoutPrevote))
	return Transition{Next: next, Output: &out}
}

func applyPolkaNil(state State, info Info) Transition {
	if state.Step != tmconsensus.StepPrevote {
		return Transition{Next: state}
	}
	return precommitTransition(state, info, tmconsensus.VNil[tmconsensus.Hash]())
}

func applyProposalAndPolkaCurrent(state State, info Info, p tmconsensus.Proposal) Transition {
	if state.Step != tmconsensus.StepPrevote {
		return Transition{Next: state}
	}

	next := state
	next.Proposal = &p
	rv := tmconsensus.RoundValue{Value: p.Value, Round: next.Round}
	next.Locked = &rv
	next.Valid = &rv

	return precommitTransition(next, info, tmconsensus.Val(p.ValueID()))
}

func precommitTransition(state State, info Info, value tmconsensus.NilOrVal[tmconsensus.Hash]) Transition {
	next := state
	next.Step = tmconsensus.StepPrecommit

	v := tmconsensus.Vote{
		Type:         tmconsensus.PrecommitType,
		Height:       next.Height,
		Round:        next.Round,
		Value:        value,
		VoterAddress: info.OurAddress,
	}
	next.LastPrecommit = &v

	out := voteOutput(v)
	return Transition{Next: next, Output: &out}
}

func applyPrecommitAny(state State) Transition {
	if state.Step != tmconsensus.StepPrecommit {
		return Transition{Next: state}
	}
	if state.precommitAnyScheduled {
		return Transition{Next: state}
	}

	next := state
	next.precommitAnyScheduled = true

	out := scheduleTimeoutOutput(tmconsensus.NewTimeout(next.Round, tmconsensus.TimeoutPrecommit))
	return Transition{Next: next, Output: &out}
}

func applyProposalAndPrecommitValue(state State, p tmconsensus.Proposal) Transition {
	if state.Decision != nil {
		return Transition{Next: state}
	}

	next := state
	next.Proposal = &p
	next.Step = tmconsensus.StepCommit
	rv := tmconsensus.RoundValue{Value: p.Value, Round: next.Round}
	next.Decision = &rv

	out := decisionOutput(rv)
	return Transition{Next: next, Output: &out}
}

func applyRoundSkip(state State, r tmconsensus.Round) Transition {
	if state.Step == tmconsensus.StepCommit {
		return Transition{Next: state}
	}
	if r <= state.Round {
		return Transition{Next: state}
	}

	out := newRoundOutput(r)
	return Transition{Next: state, Output: &out}
}

func applyTimeoutPropose(state State, info Info) Transition {
	if state.Step != tmconsensus.StepPropose {
		return Transition{Next: state}
	}
	return prevoteTransition(state, info, tmconsensus.VNil[tmconsensus.Hash]())
}

func applyTimeoutPrevote(state State, info Info) Transition {
	if state.Step != tmconsensus.StepPrevote {
		return Transition{Next: state}
	}
	return precommitTransition(state, info, tmconsensus.VNil[tmconsensus.Hash]())
}

func applyTimeoutPrecommit(state State) Transition {
	if state.Step != tmconsensus.StepPrecommit {
		return Transition{Next: state}
	}
	if state.Decision != nil {
		return Transition{Next: state}
	}

	out := newRoundOutput(state.Round + 1)
	return Transition{Next: state, Output: &out}
}

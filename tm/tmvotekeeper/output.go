package tmvotekeeper

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// OutputKind enumerates the events the vote keeper surfaces to the
// driver (spec §4.3).
type OutputKind uint8

const (
	OutputPolkaAny OutputKind = iota + 1
	OutputPolkaNil
	OutputPolkaValue
	OutputPrecommitAny
	OutputPrecommitValue
	OutputSkipRound
)

// String implements fmt.Stringer.
func (k OutputKind) String() string {
	switch k {
	case OutputPolkaAny:
		return "PolkaAny"
	case OutputPolkaNil:
		return "PolkaNil"
	case OutputPolkaValue:
		return "PolkaValue"
	case OutputPrecommitAny:
		return "PrecommitAny"
	case OutputPrecommitValue:
		return "PrecommitValue"
	case OutputSkipRound:
		return "SkipRound"
	default:
		return "OutputKind(unknown)"
	}
}

// Output is a single event emitted by [Keeper.AddVote]. ValueHash is
// only meaningful for the *Value kinds; Round is only meaningful for
// OutputSkipRound.
type Output struct {
	Kind      OutputKind
	ValueHash tmconsensus.Hash
	Round     tmconsensus.Round
}

// thresholdToOutput maps a vote type and the threshold its value just
// reached to the corresponding keeper event, per spec §4.3 step 4.
// It returns ok=false for Unreached (no event) and for Skip, which the
// keeper computes separately from cross-type round weight rather than
// from a single Count's threshold.
func thresholdToOutput(t tmconsensus.VoteType, th tmconsensus.Threshold) (Output, bool) {
	switch th.Kind {
	case tmconsensus.ThresholdUnreached, tmconsensus.ThresholdSkip:
		return Output{}, false
	case tmconsensus.ThresholdAny:
		if t == tmconsensus.PrevoteType {
			return Output{Kind: OutputPolkaAny}, true
		}
		return Output{Kind: OutputPrecommitAny}, true
	case tmconsensus.ThresholdNil:
		if t == tmconsensus.PrevoteType {
			return Output{Kind: OutputPolkaNil}, true
		}
		// Precommit-for-nil quorum has no distinguished event from
		// precommit-for-any: the driver only needs to know a decision
		// is impossible, handled identically either way (spec §4.3 step 4).
		return Output{Kind: OutputPrecommitAny}, true
	case tmconsensus.ThresholdValue:
		if t == tmconsensus.PrevoteType {
			return Output{Kind: OutputPolkaValue, ValueHash: th.ValueHash}, true
		}
		return Output{Kind: OutputPrecommitValue, ValueHash: th.ValueHash}, true
	default:
		return Output{}, false
	}
}

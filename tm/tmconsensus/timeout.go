package tmconsensus

// TimeoutKind distinguishes the timer a Timeout belongs to.
type TimeoutKind uint8

const (
	TimeoutPropose TimeoutKind = iota + 1
	TimeoutPrevote
	TimeoutPrecommit
	TimeoutCommit

	// TimeoutPrevoteTimeLimit and TimeoutPrecommitTimeLimit bound how long
	// the driver waits on a round before forcing a fresh timeout input,
	// independent of the propose/prevote/precommit timers above.
	TimeoutPrevoteTimeLimit
	TimeoutPrecommitTimeLimit

	// TimeoutPrevoteRebroadcast and TimeoutPrecommitRebroadcast drive the
	// periodic rebroadcast of the last signed vote described in spec §4.5
	// and §5; they never produce a fresh vote.
	TimeoutPrevoteRebroadcast
	TimeoutPrecommitRebroadcast
)

// String implements fmt.Stringer.
func (k TimeoutKind) String() string {
	switch k {
	case TimeoutPropose:
		return "Propose"
	case TimeoutPrevote:
		return "Prevote"
	case TimeoutPrecommit:
		return "Precommit"
	case TimeoutCommit:
		return "Commit"
	case TimeoutPrevoteTimeLimit:
		return "PrevoteTimeLimit"
	case TimeoutPrecommitTimeLimit:
		return "PrecommitTimeLimit"
	case TimeoutPrevoteRebroadcast:
		return "PrevoteRebroadcast"
	case TimeoutPrecommitRebroadcast:
		return "PrecommitRebroadcast"
	default:
		return "TimeoutKind(unknown)"
	}
}

// Timeout identifies a single scheduled timer by its kind and the round
// it belongs to; (Kind, Round) is the identity a CancelTimeout matches on.
type Timeout struct {
	Round Round
	Kind  TimeoutKind
}

// NewTimeout builds a Timeout for the given round and kind.
func NewTimeout(round Round, kind TimeoutKind) Timeout {
	return Timeout{Round: round, Kind: kind}
}

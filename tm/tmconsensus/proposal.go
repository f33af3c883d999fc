package tmconsensus

// Proposal is the value a proposer suggests for a given (height, round).
//
// PolRound ("proof-of-lock round") is NilRound unless the proposer is
// re-proposing a value it already observed a polka for in an earlier
// round, in which case PolRound names that earlier round and must be
// strictly less than Round.
type Proposal struct {
	Height          Height
	Round           Round
	Value           Value
	PolRound        Round
	ProposerAddress Address
}

// ValueID returns the Id of the proposed value, for comparison against
// vote and threshold values without requiring the full Value.
func (p Proposal) ValueID() Hash {
	return p.Value.ID()
}

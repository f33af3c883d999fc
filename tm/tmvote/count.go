package tmvote

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// Count tallies, for a single vote type in a single round, the voting
// weight behind each distinct value (including Nil) and the running
// sum, along with which validators have already contributed. It is the
// Go counterpart of the original source's VoteCount: each validator
// contributes at most one vote to a given (round, type), enforced by
// the caller checking Contributed before calling Add.
type Count struct {
	valuesWeights map[tmconsensus.NilOrVal[tmconsensus.Hash]]uint64
	addresses     map[tmconsensus.Address]struct{}
	sum           uint64
}

// NewCount returns an empty Count.
func NewCount() *Count {
	return &Count{
		valuesWeights: make(map[tmconsensus.NilOrVal[tmconsensus.Hash]]uint64),
		addresses:     make(map[tmconsensus.Address]struct{}),
	}
}

// Contributed reports whether addr has already contributed a vote to
// this Count.
func (c *Count) Contributed(addr tmconsensus.Address) bool {
	_, ok := c.addresses[addr]
	return ok
}

// Add records a vote for value, cast by addr, carrying weight. The
// caller must have already confirmed !c.Contributed(addr); Add itself
// does not re-check, since the vote keeper needs to distinguish "first
// vote" from "equivocation" before deciding whether to tally at all.
func (c *Count) Add(value tmconsensus.NilOrVal[tmconsensus.Hash], addr tmconsensus.Address, weight uint64) {
	c.addresses[addr] = struct{}{}
	c.valuesWeights[value] += weight
	c.sum += weight
}

// WeightFor returns the tallied weight for value, or 0 if none.
func (c *Count) WeightFor(value tmconsensus.NilOrVal[tmconsensus.Hash]) uint64 {
	return c.valuesWeights[value]
}

// Sum returns the total weight tallied across every value.
func (c *Count) Sum() uint64 {
	return c.sum
}

// Threshold computes the Threshold this Count has reached for value
// against total, using param as the quorum fraction. The possible
// Unreached/Nil/Any/Value outcomes are spec §4.2's; Skip is never
// returned here since it is a cross-type, cross-round notion computed
// by the vote keeper, not a single Count.
func (c *Count) Threshold(value tmconsensus.NilOrVal[tmconsensus.Hash], param tmconsensus.ThresholdParam, total uint64) tmconsensus.Threshold {
	weightForValue := c.WeightFor(value)
	if param.IsMet(weightForValue, total) {
		if v, ok := value.Value(); ok {
			return tmconsensus.ThValue(v)
		}
		return tmconsensus.ThNil
	}

	if param.IsMet(c.sum, total) {
		return tmconsensus.ThAny
	}

	return tmconsensus.Unreached
}

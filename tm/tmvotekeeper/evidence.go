package tmvotekeeper

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// EquivocationPair is two conflicting votes cast by the same validator
// for the same (height, round, type), as described in spec §4.3 step 2.
type EquivocationPair struct {
	Existing    tmconsensus.SignedVote
	Conflicting tmconsensus.SignedVote
}

// EvidenceMap records equivocation pairs by the address responsible,
// grounded on the original source's EvidenceMap (alloc::BTreeMap keyed
// on validator address).
type EvidenceMap struct {
	byAddress map[tmconsensus.Address][]EquivocationPair
}

func newEvidenceMap() *EvidenceMap {
	return &EvidenceMap{byAddress: make(map[tmconsensus.Address][]EquivocationPair)}
}

// IsEmpty reports whether any equivocation has been recorded.
func (m *EvidenceMap) IsEmpty() bool {
	return len(m.byAddress) == 0
}

// For returns the equivocation pairs recorded against addr, if any.
func (m *EvidenceMap) For(addr tmconsensus.Address) []EquivocationPair {
	return m.byAddress[addr]
}

func (m *EvidenceMap) add(addr tmconsensus.Address, existing, conflicting tmconsensus.SignedVote) {
	m.byAddress[addr] = append(m.byAddress[addr], EquivocationPair{
		Existing:    existing,
		Conflicting: conflicting,
	})
}

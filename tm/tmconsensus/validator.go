package tmconsensus

import (
	"fmt"
	"sort"

	"github.com/bft-sm/tmcore/gcrypto"
)

// Validator is a single member of a [ValidatorSet]: an address, its
// public key, and the voting power it carries.
type Validator struct {
	Address    Address
	PubKey     gcrypto.PubKey
	PowerValue uint64
}

// Power returns v's voting power.
func (v Validator) Power() uint64 {
	return v.PowerValue
}

// NewValidator derives a Validator's Address from pk via
// [tmconsensus.PubKeyToAddress].
func NewValidator(pk gcrypto.PubKey, power uint64) Validator {
	return Validator{
		Address:    PubKeyToAddress(pk),
		PubKey:     pk,
		PowerValue: power,
	}
}

// ValidatorSet is an ordered, non-empty collection of validators with
// unique addresses. The order is stable (sorted by address) so that
// proposer selection and certificate verification are deterministic
// regardless of construction order.
type ValidatorSet struct {
	validators []Validator
	byAddress  map[Address]int
	total      uint64
}

// NewValidatorSet builds a ValidatorSet from vs, sorting by address.
// It panics if vs is empty or contains a duplicate address, since both
// violate the data model invariant in spec §3.
func NewValidatorSet(vs []Validator) ValidatorSet {
	if len(vs) == 0 {
		panic("tmconsensus: validator set must not be empty")
	}

	sorted := make([]Validator, len(vs))
	copy(sorted, vs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	byAddress := make(map[Address]int, len(sorted))
	var total uint64
	for i, v := range sorted {
		if _, ok := byAddress[v.Address]; ok {
			panic(fmt.Errorf("tmconsensus: duplicate validator address %q", v.Address))
		}
		byAddress[v.Address] = i
		total += v.PowerValue
	}

	return ValidatorSet{validators: sorted, byAddress: byAddress, total: total}
}

// Count returns the number of validators in the set.
func (s ValidatorSet) Count() int {
	return len(s.validators)
}

// TotalVotingPower returns the sum of every validator's voting power.
func (s ValidatorSet) TotalVotingPower() uint64 {
	return s.total
}

// GetByAddress returns the validator with the given address, if present.
func (s ValidatorSet) GetByAddress(addr Address) (Validator, bool) {
	idx, ok := s.byAddress[addr]
	if !ok {
		return Validator{}, false
	}
	return s.validators[idx], true
}

// GetByIndex returns the i'th validator in address-sorted order.
func (s ValidatorSet) GetByIndex(i int) (Validator, bool) {
	if i < 0 || i >= len(s.validators) {
		return Validator{}, false
	}
	return s.validators[i], true
}

// Proposer returns the validator selected to propose at (height, round),
// using a deterministic round-robin weighted by index, matching the
// glossary's "chosen by a deterministic function of (height, round,
// validator_set)". Applications needing stake-weighted selection should
// wrap ValidatorSet rather than replace this default.
func (s ValidatorSet) Proposer(h Height, r Round) Validator {
	n := uint64(len(s.validators))
	idx := (uint64(h) + uint64(r)) % n
	return s.validators[idx]
}

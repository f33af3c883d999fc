package tmproposal

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// Validity is the outcome of the application host's validation of a
// received proposal's value.
type Validity uint8

const (
	Valid Validity = iota + 1
	Invalid
)

// Entry is a stored (proposal, validity) pair.
type Entry struct {
	Proposal tmconsensus.Proposal
	Validity Validity
}

type key struct {
	round tmconsensus.Round
	value tmconsensus.Hash
}

// Keeper indexes every proposal received for a height by
// (round, value id). It is append-only per key: once an entry exists
// for a given key, a second Add for that same key is a no-op, so a
// validity can never be silently upgraded or downgraded in place
// (spec §4.4, §9).
type Keeper struct {
	entries map[key]Entry
}

// New returns an empty Keeper.
func New() *Keeper {
	return &Keeper{entries: make(map[key]Entry)}
}

// Add stores p with the given validity, unless an entry already exists
// for (p.Round, value id), in which case Add reports added=false and
// leaves the existing entry untouched.
func (k *Keeper) Add(p tmconsensus.Proposal, v Validity) (added bool) {
	kk := key{round: p.Round, value: p.ValueID()}
	if _, ok := k.entries[kk]; ok {
		return false
	}
	k.entries[kk] = Entry{Proposal: p, Validity: v}
	return true
}

// Get returns the stored entry for (round, valueID), if any.
func (k *Keeper) Get(round tmconsensus.Round, valueID tmconsensus.Hash) (Entry, bool) {
	e, ok := k.entries[key{round: round, value: valueID}]
	return e, ok
}

// ValidProposal returns the valid proposal stored for (round, valueID),
// if one was recorded as Valid.
func (k *Keeper) ValidProposal(round tmconsensus.Round, valueID tmconsensus.Hash) (tmconsensus.Proposal, bool) {
	e, ok := k.Get(round, valueID)
	if !ok || e.Validity != Valid {
		return tmconsensus.Proposal{}, false
	}
	return e.Proposal, true
}

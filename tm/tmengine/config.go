package tmengine

import (
	"time"

	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// ValuePayload governs whether a signed Proposal message is produced in
// addition to the proposal-parts stream (spec §6.5).
type ValuePayload uint8

const (
	// PartsOnly never signs a standalone Proposal message; the value's
	// content travels exclusively over the proposal-parts channel
	// (§6.2), and the proposer's vote on it is the only signed artifact
	// referencing the value directly.
	PartsOnly ValuePayload = iota + 1
	// ProposalOnly signs a Proposal message carrying the value directly
	// and never streams parts.
	ProposalOnly
	// ProposalAndParts does both: useful for redundancy or for a host
	// that wants the value available without waiting on reassembly.
	ProposalAndParts
)

// VoteSyncMode selects how validators that have fallen behind on votes
// for the current round catch back up (spec §6.5).
type VoteSyncMode uint8

const (
	// Rebroadcast periodically resends the last signed vote and the
	// round certificate; it never solicits the network directly.
	Rebroadcast VoteSyncMode = iota + 1
	// RequestResponse asks peers directly via the Sync channel's
	// VoteSetRequest/VoteSetResponse exchange.
	RequestResponse
)

// TimeoutConfig holds the base duration and per-round growth for each
// timer kind (spec §5, §6.5): a round r's duration for propose,
// prevote, and precommit is Base + r*Delta; Commit is fixed.
type TimeoutConfig struct {
	Propose      time.Duration
	ProposeDelta time.Duration

	Prevote      time.Duration
	PrevoteDelta time.Duration

	Precommit      time.Duration
	PrecommitDelta time.Duration

	Commit time.Duration

	// Step is the duration Duration returns for timeout kinds that have
	// no field of their own (the time-limit and rebroadcast timers).
	Step time.Duration
}

// Duration returns the duration for timeout kind k in round r, applying
// the per-round growth for Propose/Prevote/Precommit and the fixed
// Commit duration. Kinds with no field of their own (the time-limit and
// rebroadcast timers) get Step.
func (c TimeoutConfig) Duration(k tmconsensus.TimeoutKind, r tmconsensus.Round) time.Duration {
	n := time.Duration(0)
	if r > 0 {
		n = time.Duration(r)
	}

	switch k {
	case tmconsensus.TimeoutPropose:
		return c.Propose + n*c.ProposeDelta
	case tmconsensus.TimeoutPrevote:
		return c.Prevote + n*c.PrevoteDelta
	case tmconsensus.TimeoutPrecommit:
		return c.Precommit + n*c.PrecommitDelta
	case tmconsensus.TimeoutCommit:
		return c.Commit
	default:
		return c.Step
	}
}

// SyncConfig governs the Sync network channel (spec §6.2, §6.5).
type SyncConfig struct {
	Enabled bool

	StatusUpdateInterval time.Duration
	RequestTimeout       time.Duration
	ParallelRequests     int
	BatchSize            int
	MaxResponseSize      int
}

// Config bundles construction-time parameters for a [Coordinator] (spec
// §6.5). The zero value is not usable; build one with explicit fields
// or a helper that supplies sane defaults for a given deployment.
type Config struct {
	InitialHeight tmconsensus.Height
	Address       tmconsensus.Address

	ThresholdParams tmconsensus.ThresholdParams

	ValuePayload ValuePayload
	VoteSyncMode VoteSyncMode

	Timeouts TimeoutConfig
	Sync     SyncConfig

	// PrevoteRebroadcastInterval and PrecommitRebroadcastInterval are
	// independent of the Timeouts cadence (spec §5's "Rebroadcast
	// timeouts have independent cadence").
	PrevoteRebroadcastInterval   time.Duration
	PrecommitRebroadcastInterval time.Duration
}

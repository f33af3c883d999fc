package tmconsensus

import "errors"

// Sentinel errors for the verification and lookup failures the engine
// reports. Certificate-specific failures live in tmcert; equivocation
// is not an error at all but recorded evidence (see tmvotekeeper).
var (
	// ErrUnknownValidator indicates a message from an address absent
	// from the active validator set.
	ErrUnknownValidator = errors.New("tmconsensus: validator not in active set")

	// ErrInvalidSignature indicates a vote or proposal whose signature
	// does not verify against its signer's public key.
	ErrInvalidSignature = errors.New("tmconsensus: invalid signature")

	// ErrValidatorSetNotFound indicates a height was started, or a
	// certificate referenced, without a usable validator set.
	ErrValidatorSetNotFound = errors.New("tmconsensus: validator set not found")

	// ErrProposalNotFound indicates a decide path could not locate the
	// full proposal backing a decision; an internal invariant violation.
	ErrProposalNotFound = errors.New("tmconsensus: proposal not found")

	// ErrDecisionNotFound indicates a decided height's record could not
	// be produced; an internal invariant violation.
	ErrDecisionNotFound = errors.New("tmconsensus: decision not found")
)

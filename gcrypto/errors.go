package gcrypto

import "errors"

// ErrUnknownKey indicates that a signature was submitted for a public key
// that was not part of the candidate key set a proof was created with.
var ErrUnknownKey = errors.New("gcrypto: unknown public key")

// ErrInvalidSignature indicates that a signature failed to verify
// against the message and public key it was submitted with.
var ErrInvalidSignature = errors.New("gcrypto: invalid signature")

// SignatureProofMergeResult reports the outcome of merging one
// [CommonMessageSignatureProof] (or [SparseSignatureProof]) into another.
type SignatureProofMergeResult struct {
	// AllValidSignatures is true if every signature present in the
	// incoming proof was valid and recognized.
	//
	// It is false if any signature failed to verify, referenced an
	// unknown key, or otherwise could not be merged.
	AllValidSignatures bool

	// IncreasedSignatures is true if the merge caused the receiving
	// proof to gain at least one signature it did not already have.
	IncreasedSignatures bool

	// WasStrictSuperset is true if the incoming proof contained at
	// least one signature the receiving proof did not already have,
	// and the receiving proof did not contain any signature absent
	// from the incoming proof.
	WasStrictSuperset bool
}

package gcrypto

import "context"

// Signer is the capability to produce a signature over arbitrary bytes
// with a specific private key, and to report the corresponding [PubKey].
//
// Sign takes a context so that implementations backed by a remote signer
// (an HSM or a co-located signing process) can respect cancellation.
type Signer interface {
	PubKey() PubKey

	Sign(ctx context.Context, input []byte) ([]byte, error)
}

package gcryptotest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/bft-sm/tmcore/gcrypto"
)

var (
	detEdMu      sync.Mutex
	detEdSigners []gcrypto.Signer
)

// DeterministicEd25519Signers returns n [gcrypto.Signer] values backed by
// Ed25519 keys derived from a fixed seed, so that repeated calls across
// a test binary's lifetime -- even across separate test functions --
// return the same keys without paying repeated key generation cost.
//
// The keys have no security value; this exists purely so tests can refer
// to "validator 0", "validator 1", and so on, with stable expectations.
func DeterministicEd25519Signers(n int) []gcrypto.Signer {
	detEdMu.Lock()
	defer detEdMu.Unlock()

	for len(detEdSigners) < n {
		i := len(detEdSigners)

		var seed [32]byte
		binary.BigEndian.PutUint64(seed[:8], uint64(i))
		digest := sha256.Sum256(seed[:])

		priv := ed25519.NewKeyFromSeed(digest[:])
		detEdSigners = append(detEdSigners, gcrypto.NewEd25519Signer(priv))
	}

	out := make([]gcrypto.Signer, n)
	copy(out, detEdSigners[:n])
	return out
}

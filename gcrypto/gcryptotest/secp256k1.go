package gcryptotest

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bft-sm/tmcore/gcrypto"
)

var (
	detSecpMu      sync.Mutex
	detSecpSigners []gcrypto.Signer
)

// DeterministicSecp256k1Signers returns n [gcrypto.Signer] values backed
// by secp256k1 keys derived from a fixed seed, following the same
// cached-deterministic pattern as [DeterministicEd25519Signers].
//
// The keys have no security value; they exist so tests can mix key
// schemes within one validator set with stable expectations.
func DeterministicSecp256k1Signers(n int) []gcrypto.Signer {
	detSecpMu.Lock()
	defer detSecpMu.Unlock()

	for len(detSecpSigners) < n {
		i := len(detSecpSigners)

		var seed [32]byte
		copy(seed[:], "secp256k1")
		binary.BigEndian.PutUint64(seed[24:], uint64(i))
		digest := sha256.Sum256(seed[:])

		// A 32-byte digest is a valid scalar with overwhelming
		// probability; re-hash on the astronomically unlikely miss
		// rather than silently skipping an index.
		priv, err := crypto.ToECDSA(digest[:])
		for err != nil {
			digest = sha256.Sum256(digest[:])
			priv, err = crypto.ToECDSA(digest[:])
		}

		detSecpSigners = append(detSecpSigners, gcrypto.NewSecp256k1Signer(priv))
	}

	out := make([]gcrypto.Signer, n)
	copy(out, detSecpSigners[:n])
	return out
}

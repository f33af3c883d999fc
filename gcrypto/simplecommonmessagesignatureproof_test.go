package gcrypto_test

import (
	"testing"

	"github.com/bft-sm/tmcore/gcrypto"
	"github.com/bft-sm/tmcore/gcrypto/gcryptotest"
)

func TestSimpleCommonMessageSignatureProof_Compliance(t *testing.T) {
	gcryptotest.TestCommonMessageSignatureProofCompliance_Ed25519(
		t, gcrypto.SimpleCommonMessageSignatureProofScheme{},
	)
}

package tmconsensustest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/gcrypto"
	"github.com/bft-sm/tmcore/gcrypto/gblsminsig"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmconsensus/tmconsensustest"
)

func TestNewMixedSchemeFixture_RegistryRoundTrip(t *testing.T) {
	t.Parallel()

	fx := tmconsensustest.NewMixedSchemeFixture(6)

	sawType := make(map[string]int)
	for i := range fx.ValSet.Count() {
		v := fx.Validator(i)

		b := fx.Registry.Marshal(v.PubKey)
		got, err := fx.Registry.Unmarshal(b)
		require.NoError(t, err)
		require.True(t, got.Equal(v.PubKey),
			"validator %d key did not survive registry round trip", i)

		switch got.(type) {
		case gcrypto.Ed25519PubKey:
			sawType["ed25519"]++
		case gcrypto.Secp256k1PubKey:
			sawType["secp256k1"]++
		case gblsminsig.PubKey:
			sawType["bls"]++
		default:
			t.Fatalf("unexpected key type %T from registry", got)
		}
	}

	// 6 validators rotating across 3 schemes: two of each.
	require.Equal(t, map[string]int{"ed25519": 2, "secp256k1": 2, "bls": 2}, sawType)
}

func TestNewMixedSchemeFixture_AllSchemesSignAndVerify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := tmconsensustest.NewMixedSchemeFixture(3)

	value := tmconsensustest.MockValue("mixed scheme content")

	for i := range fx.ValSet.Count() {
		sv := fx.PrevoteFor(ctx, i, 1, 0, tmconsensus.Val(value.ID()))
		v := fx.Validator(i)
		require.True(t, v.PubKey.Verify(sv.Vote.SignContent(), sv.Signature),
			"validator %d (%T) signature did not verify", i, v.PubKey)
	}
}

package tmsqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmstore"
	"github.com/bft-sm/tmcore/tm/tmstore/tmsqlite"
)

func TestBlockStoreSaveLoadPrune(t *testing.T) {
	ctx := context.Background()

	s, err := tmsqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.TipHeight(ctx)
	require.ErrorIs(t, err, tmstore.ErrHeightNotFound)

	for h := tmconsensus.Height(1); h <= 3; h++ {
		require.NoError(t, s.SaveDecision(ctx, tmstore.Decision{
			Height:     h,
			ValueBytes: []byte{byte(h)},
			Cert: tmcert.CommitCertificate{
				Height:  h,
				ValueID: tmconsensus.Hash{byte(h)},
			},
		}))
	}

	tip, err := s.TipHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, tmconsensus.Height(3), tip)

	d, err := s.LoadDecision(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, d.ValueBytes)

	require.NoError(t, s.PruneBelow(ctx, 3))
	_, err = s.LoadDecision(ctx, 2)
	require.ErrorIs(t, err, tmstore.ErrHeightNotFound)

	d, err = s.LoadDecision(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, tmconsensus.Height(3), d.Height)
}

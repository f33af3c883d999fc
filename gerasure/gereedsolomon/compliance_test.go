package gereedsolomon_test

import (
	"testing"

	"github.com/bft-sm/tmcore/gerasure"
	"github.com/bft-sm/tmcore/gerasure/gerasuretest"
	"github.com/bft-sm/tmcore/gerasure/gereedsolomon"
	"github.com/klauspost/reedsolomon"
)

func TestReconstructionCompliance(t *testing.T) {
	gerasuretest.TestFixedRateErasureReconstructionCompliance(
		t,
		func(origData []byte, nData, nParity int) (gerasure.Encoder, gerasure.Reconstructor) {
			rs, err := reedsolomon.New(nData, nParity)
			if err != nil {
				panic(err)
			}

			// We don't know the shard size until we encode.
			// (Or at least I don't see how to get that from the reedsolomon package.)
			allShards, err := rs.Split(origData)
			if err != nil {
				panic(err)
			}
			shardSize := len(allShards[0])

			enc, err := gereedsolomon.NewEncoder(nData, nParity)
			if err != nil {
				panic(err)
			}

			// The reconstructor builds its own reedsolomon encoder.
			r, err := gereedsolomon.NewReconstructor(nData, nParity, shardSize)
			if err != nil {
				panic(err)
			}

			return enc, r
		},
	)
}

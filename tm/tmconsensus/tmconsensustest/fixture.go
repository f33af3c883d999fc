package tmconsensustest

import (
	"context"
	"fmt"

	"github.com/bft-sm/tmcore/gcrypto"
	"github.com/bft-sm/tmcore/gcrypto/gblsminsig"
	"github.com/bft-sm/tmcore/gcrypto/gblsminsig/gblsminsigtest"
	"github.com/bft-sm/tmcore/gcrypto/gcryptotest"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// Fixture is a set of deterministic validators, each with voting power
// 1, plus signing helpers, so a test can produce votes and proposals
// that verify against the fixture's validator set.
type Fixture struct {
	Signers []gcrypto.Signer

	ValSet tmconsensus.ValidatorSet

	Registry gcrypto.Registry
}

// newFixture builds the validator set for signers and reorders them to
// match the set's address-sorted order, so Signers[i] always
// corresponds to ValSet.GetByIndex(i). Key-type registration is the
// caller's job.
func newFixture(signers []gcrypto.Signer) *Fixture {
	n := len(signers)

	vals := make([]tmconsensus.Validator, n)
	for i, s := range signers {
		vals[i] = tmconsensus.NewValidator(s.PubKey(), 1)
	}
	vs := tmconsensus.NewValidatorSet(vals)

	ordered := make([]gcrypto.Signer, n)
	for _, s := range signers {
		addr := tmconsensus.PubKeyToAddress(s.PubKey())
		for i := range n {
			v, _ := vs.GetByIndex(i)
			if v.Address == addr {
				ordered[i] = s
				break
			}
		}
	}

	return &Fixture{
		Signers: ordered,
		ValSet:  vs,
	}
}

// NewEd25519Fixture returns a fixture of n deterministic Ed25519
// validators.
func NewEd25519Fixture(n int) *Fixture {
	fx := newFixture(gcryptotest.DeterministicEd25519Signers(n))
	gcrypto.RegisterEd25519(&fx.Registry)
	return fx
}

// NewMixedSchemeFixture returns a fixture of n deterministic validators
// whose key schemes rotate through Ed25519, secp256k1, and
// minimized-signature BLS, with all three schemes registered. The core
// never inspects a key beyond [gcrypto.PubKey], so a set like this must
// behave identically to a single-scheme one; tests use it to prove
// that, and to exercise the registry's multi-scheme prefix dispatch.
func NewMixedSchemeFixture(n int) *Fixture {
	eds := gcryptotest.DeterministicEd25519Signers(n)
	secps := gcryptotest.DeterministicSecp256k1Signers(n)
	blss := gblsminsigtest.DeterministicSigners(n)

	signers := make([]gcrypto.Signer, n)
	for i := range n {
		switch i % 3 {
		case 0:
			signers[i] = eds[i]
		case 1:
			signers[i] = secps[i]
		default:
			signers[i] = blss[i]
		}
	}

	fx := newFixture(signers)
	gcrypto.RegisterEd25519(&fx.Registry)
	gcrypto.RegisterSecp256k1(&fx.Registry)
	gblsminsig.Register(&fx.Registry)
	return fx
}

// Validator returns the i'th validator in set order.
func (f *Fixture) Validator(i int) tmconsensus.Validator {
	v, ok := f.ValSet.GetByIndex(i)
	if !ok {
		panic(fmt.Errorf("tmconsensustest: validator index %d out of range", i))
	}
	return v
}

// Address returns the i'th validator's address.
func (f *Fixture) Address(i int) tmconsensus.Address {
	return f.Validator(i).Address
}

// SignVote signs v with the i'th validator's key. The vote's
// VoterAddress is overwritten to that validator's address so callers
// can't accidentally sign for the wrong voter.
func (f *Fixture) SignVote(ctx context.Context, i int, v tmconsensus.Vote) tmconsensus.SignedVote {
	v.VoterAddress = f.Address(i)
	sig, err := f.Signers[i].Sign(ctx, v.SignContent())
	if err != nil {
		panic(fmt.Errorf("tmconsensustest: signing vote: %w", err))
	}
	return tmconsensus.SignedVote{Vote: v, Signature: sig}
}

// SignProposal signs p with the i'th validator's key, overwriting
// ProposerAddress the same way SignVote overwrites VoterAddress.
func (f *Fixture) SignProposal(ctx context.Context, i int, p tmconsensus.Proposal) tmconsensus.SignedProposal {
	p.ProposerAddress = f.Address(i)
	sig, err := f.Signers[i].Sign(ctx, p.SignContent())
	if err != nil {
		panic(fmt.Errorf("tmconsensustest: signing proposal: %w", err))
	}
	return tmconsensus.SignedProposal{Proposal: p, Signature: sig}
}

// PrevoteFor returns a signed prevote from validator i for value in
// (h, r); pass a Nil value for a nil-prevote.
func (f *Fixture) PrevoteFor(
	ctx context.Context,
	i int,
	h tmconsensus.Height,
	r tmconsensus.Round,
	value tmconsensus.NilOrVal[tmconsensus.Hash],
) tmconsensus.SignedVote {
	return f.SignVote(ctx, i, tmconsensus.Vote{
		Type:   tmconsensus.PrevoteType,
		Height: h,
		Round:  r,
		Value:  value,
	})
}

// PrecommitFor is PrevoteFor's precommit counterpart.
func (f *Fixture) PrecommitFor(
	ctx context.Context,
	i int,
	h tmconsensus.Height,
	r tmconsensus.Round,
	value tmconsensus.NilOrVal[tmconsensus.Hash],
) tmconsensus.SignedVote {
	return f.SignVote(ctx, i, tmconsensus.Vote{
		Type:   tmconsensus.PrecommitType,
		Height: h,
		Round:  r,
		Value:  value,
	})
}

// ProposerIndex returns the set-order index of the proposer for (h, r).
func (f *Fixture) ProposerIndex(h tmconsensus.Height, r tmconsensus.Round) int {
	proposer := f.ValSet.Proposer(h, r)
	for i := range f.ValSet.Count() {
		if f.Address(i) == proposer.Address {
			return i
		}
	}
	panic("tmconsensustest: proposer not found in own validator set")
}

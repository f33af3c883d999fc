package tmcert

import (
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// CommitSignature is one validator's contribution to a CommitCertificate.
// Extension is the opaque vote-extension payload carried by that
// validator's precommit, if any; it is authenticated only by Signature,
// per spec §9.
type CommitSignature struct {
	Address   tmconsensus.Address
	Signature []byte
	Extension []byte
}

// CommitCertificate proves that a super-majority of validators
// precommitted ValueID in (Height, Round). Grounded on the original
// source's CommitCertificate/CommitCertificate::new.
type CommitCertificate struct {
	Height     tmconsensus.Height
	Round      tmconsensus.Round
	ValueID    tmconsensus.Hash
	Signatures []CommitSignature
}

// NewCommitCertificate filters votes down to the precommits that match
// (height, round, valueID) and packages their signatures. Votes that
// don't match are silently dropped, mirroring CommitCertificate::new.
func NewCommitCertificate(
	height tmconsensus.Height,
	round tmconsensus.Round,
	valueID tmconsensus.Hash,
	votes []tmconsensus.SignedVote,
) CommitCertificate {
	sigs := make([]CommitSignature, 0, len(votes))
	for _, sv := range votes {
		if sv.Vote.Type != tmconsensus.PrecommitType {
			continue
		}
		if sv.Vote.Height != height || sv.Vote.Round != round {
			continue
		}
		if sv.Vote.Value.IsNil() || sv.Vote.Value.UnwrapOr(tmconsensus.Hash{}) != valueID {
			continue
		}

		sigs = append(sigs, CommitSignature{
			Address:   sv.Vote.VoterAddress,
			Signature: sv.Signature,
			Extension: sv.Vote.Extension,
		})
	}

	return CommitCertificate{
		Height:     height,
		Round:      round,
		ValueID:    valueID,
		Signatures: sigs,
	}
}

// Verify checks that c's signatures are individually valid, free of
// duplicate signers, and that the signing validators' combined voting
// power meets quorum against vs's total (spec §4.5, §7, scenario S5).
func (c CommitCertificate) Verify(vs tmconsensus.ValidatorSet, quorum tmconsensus.ThresholdParam) error {
	if len(c.Signatures) == 0 {
		return ErrEmptyCertificate
	}

	seen := make(map[tmconsensus.Address]struct{}, len(c.Signatures))
	var power uint64

	for _, cs := range c.Signatures {
		if _, dup := seen[cs.Address]; dup {
			return ErrDuplicateSigner
		}
		seen[cs.Address] = struct{}{}

		val, ok := vs.GetByAddress(cs.Address)
		if !ok {
			return ErrUnknownSigner
		}

		v := tmconsensus.Vote{
			Type:         tmconsensus.PrecommitType,
			Height:       c.Height,
			Round:        c.Round,
			Value:        tmconsensus.Val(c.ValueID),
			VoterAddress: cs.Address,
			Extension:    cs.Extension,
		}
		if !val.PubKey.Verify(v.SignContent(), cs.Signature) {
			return ErrBadSignature
		}

		power += val.Power()
	}

	if !quorum.IsMet(power, vs.TotalVotingPower()) {
		return ErrInsufficientPower
	}

	return nil
}

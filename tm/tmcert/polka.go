package tmcert

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// PolkaCertificate proves a super-majority of validators prevoted
// ValueID in (Height, Round). It carries no extensions: prevotes never
// do (spec §3).
type PolkaCertificate struct {
	Height     tmconsensus.Height
	Round      tmconsensus.Round
	ValueID    tmconsensus.Hash
	Signatures []CommitSignature
}

// NewPolkaCertificate filters votes down to the prevotes matching
// (height, round, valueID).
func NewPolkaCertificate(
	height tmconsensus.Height,
	round tmconsensus.Round,
	valueID tmconsensus.Hash,
	votes []tmconsensus.SignedVote,
) PolkaCertificate {
	sigs := make([]CommitSignature, 0, len(votes))
	for _, sv := range votes {
		if sv.Vote.Type != tmconsensus.PrevoteType {
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
		})
	}

	return PolkaCertificate{
		Height:     height,
		Round:      round,
		ValueID:    valueID,
		Signatures: sigs,
	}
}

// Verify checks p the same way CommitCertificate.Verify does, against
// the prevote signing content.
func (p PolkaCertificate) Verify(vs tmconsensus.ValidatorSet, quorum tmconsensus.ThresholdParam) error {
	if len(p.Signatures) == 0 {
		return ErrEmptyCertificate
	}

	seen := make(map[tmconsensus.Address]struct{}, len(p.Signatures))
	var power uint64

	for _, cs := range p.Signatures {
		if _, dup := seen[cs.Address]; dup {
			return ErrDuplicateSigner
		}
		seen[cs.Address] = struct{}{}

		val, ok := vs.GetByAddress(cs.Address)
		if !ok {
			return ErrUnknownSigner
		}

		v := tmconsensus.Vote{
			Type:         tmconsensus.PrevoteType,
			Height:       p.Height,
			Round:        p.Round,
			Value:        tmconsensus.Val(p.ValueID),
			VoterAddress: cs.Address,
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

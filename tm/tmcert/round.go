package tmcert

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// RoundCertificateKind distinguishes the two uses of a RoundCertificate:
// proving enough distinct validators have moved past the current round
// (Skip), or rebroadcasting the evidence behind a precommit quorum
// (Precommit).
type RoundCertificateKind uint8

const (
	RoundCertificateSkip RoundCertificateKind = iota + 1
	RoundCertificatePrecommit
)

// RoundSignature is one validator's contribution to a RoundCertificate.
// Unlike CommitSignature/PolkaSignature, it carries the vote's type and
// value, since a Skip certificate may mix prevotes and precommits for
// different values (spec §3).
type RoundSignature struct {
	VoteType  tmconsensus.VoteType
	ValueID   tmconsensus.NilOrVal[tmconsensus.Hash]
	Address   tmconsensus.Address
	Signature []byte
}

// RoundCertificate is evidence used for round skipping (spec §4.2,
// scenario S3) and for precommit rebroadcast (spec §6.3).
type RoundCertificate struct {
	Height     tmconsensus.Height
	Round      tmconsensus.Round
	Kind       RoundCertificateKind
	Signatures []RoundSignature
}

// NewRoundCertificate packages votes observed at (height, round),
// regardless of vote type or value, as Skip evidence.
func NewRoundCertificate(
	height tmconsensus.Height,
	round tmconsensus.Round,
	kind RoundCertificateKind,
	votes []tmconsensus.SignedVote,
) RoundCertificate {
	sigs := make([]RoundSignature, 0, len(votes))
	for _, sv := range votes {
		if sv.Vote.Height != height || sv.Vote.Round != round {
			continue
		}

		sigs = append(sigs, RoundSignature{
			VoteType:  sv.Vote.Type,
			ValueID:   sv.Vote.Value,
			Address:   sv.Vote.VoterAddress,
			Signature: sv.Signature,
		})
	}

	return RoundCertificate{
		Height:     height,
		Round:      round,
		Kind:       kind,
		Signatures: sigs,
	}
}

// Verify checks every signature individually and requires the combined
// voting power of distinct signers to meet threshold. Skip certificates
// are verified against the "honest minority" threshold (spec's f+1
// skip-round rule, tmconsensus.OneThirdPlusOne by default); Precommit
// certificates are verified against the same quorum a CommitCertificate
// would require.
func (c RoundCertificate) Verify(vs tmconsensus.ValidatorSet, threshold tmconsensus.ThresholdParam) error {
	if len(c.Signatures) == 0 {
		return ErrEmptyCertificate
	}

	seen := make(map[tmconsensus.Address]struct{}, len(c.Signatures))
	var power uint64

	for _, rs := range c.Signatures {
		if _, dup := seen[rs.Address]; dup {
			return ErrDuplicateSigner
		}
		seen[rs.Address] = struct{}{}

		val, ok := vs.GetByAddress(rs.Address)
		if !ok {
			return ErrUnknownSigner
		}

		v := tmconsensus.Vote{
			Type:         rs.VoteType,
			Height:       c.Height,
			Round:        c.Round,
			Value:        rs.ValueID,
			VoterAddress: rs.Address,
		}
		if !val.PubKey.Verify(v.SignContent(), rs.Signature) {
			return ErrBadSignature
		}

		power += val.Power()
	}

	if !threshold.IsMet(power, vs.TotalVotingPower()) {
		return ErrInsufficientPower
	}

	return nil
}

package tmconsensus

import (
	"encoding/binary"
)

// SignContent returns the canonical byte sequence that a Signer signs
// and a PubKey verifies for this vote. Grounded on the original source's
// Vote::to_sign_bytes / Ed25519Provider.sign_vote: a fixed-layout encoding
// of every field that participates in consensus, so that two votes that
// differ in any field never hash to the same content.
func (v Vote) SignContent() []byte {
	buf := make([]byte, 0, 1+8+4+1+32+len(v.Extension))

	buf = append(buf, byte(v.Type))
	buf = binary.BigEndian.AppendUint64(buf, uint64(v.Height))
	buf = binary.BigEndian.AppendUint32(buf, uint32(v.Round))

	if v.Value.IsNil() {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		h := v.Value.UnwrapOr(Hash{})
		buf = append(buf, h[:]...)
	}

	// Extensions are opaque bytes authenticated only via the enclosing
	// precommit signature (spec §9's stated Open Question resolution);
	// including them here is what makes that true.
	buf = append(buf, v.Extension...)

	return buf
}

// SignContent returns the canonical byte sequence signed for a proposal.
func (p Proposal) SignContent() []byte {
	id := p.ValueID()

	buf := make([]byte, 0, 8+4+4+32)
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Height))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.Round))
	buf = binary.BigEndian.AppendUint32(buf, uint32(p.PolRound))
	buf = append(buf, id[:]...)

	return buf
}

// Package tmjson implements [tmcodec.MarshalCodec] using encoding/json.
// It is deliberately not the fastest possible wire format; like the
// teacher's tmjson, it exists so that messages are human-readable on
// the wire and in the WAL, which matters far more during development
// and incident response than marshal throughput.
package tmjson

import (
	"encoding/json"
	"fmt"

	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmwal"
)

// Codec is a [tmcodec.MarshalCodec] backed by encoding/json. VC encodes
// and decodes the opaque value carried by a proposal; it may be nil if
// the caller never marshals a ConsensusMessage carrying a
// SignedProposal (for example, a PartsOnly deployment that never signs
// a standalone Proposal message).
type Codec struct {
	VC tmcodec.ValueCodec
}

var _ tmcodec.MarshalCodec = Codec{}

type jsonHash = tmconsensus.Hash

type jsonNilOrVal struct {
	Nil   bool    `json:"nil"`
	Value jsonHash `json:"value,omitempty"`
}

func marshalVoteValue(v tmconsensus.NilOrVal[tmconsensus.Hash]) jsonNilOrVal {
	if v.IsNil() {
		return jsonNilOrVal{Nil: true}
	}
	h, _ := v.Value()
	return jsonNilOrVal{Value: h}
}

func unmarshalVoteValue(j jsonNilOrVal) tmconsensus.NilOrVal[tmconsensus.Hash] {
	if j.Nil {
		return tmconsensus.VNil[tmconsensus.Hash]()
	}
	return tmconsensus.Val(j.Value)
}

type jsonVote struct {
	Type         tmconsensus.VoteType `json:"type"`
	Height       tmconsensus.Height   `json:"height"`
	Round        tmconsensus.Round    `json:"round"`
	Value        jsonNilOrVal         `json:"value"`
	VoterAddress tmconsensus.Address  `json:"voter_address"`
	Extension    []byte               `json:"extension,omitempty"`
}

type jsonSignedVote struct {
	Vote      jsonVote `json:"vote"`
	Signature []byte   `json:"signature"`
}

type jsonProposal struct {
	Height          tmconsensus.Height  `json:"height"`
	Round           tmconsensus.Round   `json:"round"`
	Value           []byte              `json:"value"`
	PolRound        tmconsensus.Round   `json:"pol_round"`
	ProposerAddress tmconsensus.Address `json:"proposer_address"`
}

type jsonSignedProposal struct {
	Proposal  jsonProposal `json:"proposal"`
	Signature []byte       `json:"signature"`
}

type jsonConsensusMessage struct {
	SignedProposal *jsonSignedProposal `json:"signed_proposal,omitempty"`
	SignedVote     *jsonSignedVote     `json:"signed_vote,omitempty"`
}

// MarshalConsensusMessage implements [tmcodec.Marshaler].
func (c Codec) MarshalConsensusMessage(m tmcodec.ConsensusMessage) ([]byte, error) {
	var j jsonConsensusMessage

	switch {
	case m.SignedVote != nil:
		sv := m.SignedVote
		j.SignedVote = &jsonSignedVote{
			Vote: jsonVote{
				Type:         sv.Vote.Type,
				Height:       sv.Vote.Height,
				Round:        sv.Vote.Round,
				Value:        marshalVoteValue(sv.Vote.Value),
				VoterAddress: sv.Vote.VoterAddress,
				Extension:    sv.Vote.Extension,
			},
			Signature: sv.Signature,
		}

	case m.SignedProposal != nil:
		if c.VC == nil {
			return nil, fmt.Errorf("tmjson: no ValueCodec configured, cannot marshal proposal value")
		}
		sp := m.SignedProposal
		vb, err := c.VC.Encode(sp.Proposal.Value)
		if err != nil {
			return nil, fmt.Errorf("tmjson: encoding proposal value: %w", err)
		}
		j.SignedProposal = &jsonSignedProposal{
			Proposal: jsonProposal{
				Height:          sp.Proposal.Height,
				Round:           sp.Proposal.Round,
				Value:           vb,
				PolRound:        sp.Proposal.PolRound,
				ProposerAddress: sp.Proposal.ProposerAddress,
			},
			Signature: sp.Signature,
		}

	default:
		return nil, fmt.Errorf("tmjson: ConsensusMessage has neither SignedVote nor SignedProposal set")
	}

	return json.Marshal(j)
}

// UnmarshalConsensusMessage implements [tmcodec.Unmarshaler].
func (c Codec) UnmarshalConsensusMessage(b []byte, out *tmcodec.ConsensusMessage) error {
	var j jsonConsensusMessage
	if err := json.Unmarshal(b, &j); err != nil {
		return fmt.Errorf("tmjson: unmarshal consensus message: %w", err)
	}

	switch {
	case j.SignedVote != nil:
		jv := j.SignedVote.Vote
		*out = tmcodec.ConsensusMessage{
			SignedVote: &tmconsensus.SignedVote{
				Vote: tmconsensus.Vote{
					Type:         jv.Type,
					Height:       jv.Height,
					Round:        jv.Round,
					Value:        unmarshalVoteValue(jv.Value),
					VoterAddress: jv.VoterAddress,
					Extension:    jv.Extension,
				},
				Signature: j.SignedVote.Signature,
			},
		}
		return nil

	case j.SignedProposal != nil:
		if c.VC == nil {
			return fmt.Errorf("tmjson: no ValueCodec configured, cannot unmarshal proposal value")
		}
		jp := j.SignedProposal.Proposal
		v, err := c.VC.Decode(jp.Value)
		if err != nil {
			return fmt.Errorf("tmjson: decoding proposal value: %w", err)
		}
		*out = tmcodec.ConsensusMessage{
			SignedProposal: &tmconsensus.SignedProposal{
				Proposal: tmconsensus.Proposal{
					Height:          jp.Height,
					Round:           jp.Round,
					Value:           v,
					PolRound:        jp.PolRound,
					ProposerAddress: jp.ProposerAddress,
				},
				Signature: j.SignedProposal.Signature,
			},
		}
		return nil

	default:
		return fmt.Errorf("tmjson: consensus message has neither signed_vote nor signed_proposal set")
	}
}

type jsonTimeout struct {
	Round tmconsensus.Round       `json:"round"`
	Kind  tmconsensus.TimeoutKind `json:"kind"`
}

// MarshalTimeout implements [tmcodec.Marshaler].
func (c Codec) MarshalTimeout(t tmconsensus.Timeout) ([]byte, error) {
	return json.Marshal(jsonTimeout{Round: t.Round, Kind: t.Kind})
}

// UnmarshalTimeout implements [tmcodec.Unmarshaler].
func (c Codec) UnmarshalTimeout(b []byte, out *tmconsensus.Timeout) error {
	var j jsonTimeout
	if err := json.Unmarshal(b, &j); err != nil {
		return fmt.Errorf("tmjson: unmarshal timeout: %w", err)
	}
	*out = tmconsensus.Timeout{Round: j.Round, Kind: j.Kind}
	return nil
}

type jsonProposedValue struct {
	Height          tmconsensus.Height  `json:"height"`
	Round           tmconsensus.Round   `json:"round"`
	Value           []byte              `json:"value"`
	ProposerAddress tmconsensus.Address `json:"proposer_address"`
	Origin          tmwal.Origin        `json:"origin"`
}

// MarshalProposedValue implements [tmwal.EntryCodec].
func (c Codec) MarshalProposedValue(pv tmwal.ProposedValue) ([]byte, error) {
	if c.VC == nil {
		return nil, fmt.Errorf("tmjson: no ValueCodec configured, cannot marshal proposed value")
	}
	vb, err := c.VC.Encode(pv.Value)
	if err != nil {
		return nil, fmt.Errorf("tmjson: encoding proposed value: %w", err)
	}
	return json.Marshal(jsonProposedValue{
		Height:          pv.Height,
		Round:           pv.Round,
		Value:           vb,
		ProposerAddress: pv.ProposerAddress,
		Origin:          pv.Origin,
	})
}

// UnmarshalProposedValue implements [tmwal.EntryCodec].
func (c Codec) UnmarshalProposedValue(b []byte, out *tmwal.ProposedValue) error {
	if c.VC == nil {
		return fmt.Errorf("tmjson: no ValueCodec configured, cannot unmarshal proposed value")
	}
	var j jsonProposedValue
	if err := json.Unmarshal(b, &j); err != nil {
		return fmt.Errorf("tmjson: unmarshal proposed value: %w", err)
	}
	v, err := c.VC.Decode(j.Value)
	if err != nil {
		return fmt.Errorf("tmjson: decoding proposed value: %w", err)
	}
	*out = tmwal.ProposedValue{
		Height:          j.Height,
		Round:           j.Round,
		Value:           v,
		ProposerAddress: j.ProposerAddress,
		Origin:          j.Origin,
	}
	return nil
}

var _ tmwal.EntryCodec = Codec{}

// Package tmcodec defines the wire (de)serialization contract for the
// consensus message types that cross the §6.2 network surface and the
// §6.4 write-ahead log. It mirrors the teacher's tmcodec
// Marshaler/Unmarshaler/MarshalCodec split so that a new wire format can
// be added (protobuf, CBOR, ...) without touching tmwal or tmengine.
package tmcodec

import "github.com/bft-sm/tmcore/tm/tmconsensus"

// ConsensusMessage wraps the two message kinds the consensus gossip
// channel carries (spec §6.2). Exactly one field is set; a
// Marshal/Unmarshal pair disagreeing on which is a caller bug, not
// something the codec is asked to validate.
type ConsensusMessage struct {
	SignedProposal *tmconsensus.SignedProposal
	SignedVote     *tmconsensus.SignedVote
}

// ValueCodec encodes and decodes the opaque application [tmconsensus.Value]
// carried by a Proposal. It is supplied by the application host, since
// the core has no notion of a value's wire representation beyond its Id.
type ValueCodec interface {
	Encode(tmconsensus.Value) ([]byte, error)
	Decode([]byte) (tmconsensus.Value, error)
}

// Marshaler produces wire bytes for the message types the core needs to
// persist or publish.
type Marshaler interface {
	MarshalConsensusMessage(ConsensusMessage) ([]byte, error)
	MarshalTimeout(tmconsensus.Timeout) ([]byte, error)
}

// Unmarshaler is the inverse of Marshaler.
type Unmarshaler interface {
	UnmarshalConsensusMessage([]byte, *ConsensusMessage) error
	UnmarshalTimeout([]byte, *tmconsensus.Timeout) error
}

// MarshalCodec marshals and unmarshals tmconsensus wire values.
type MarshalCodec interface {
	Marshaler
	Unmarshaler
}

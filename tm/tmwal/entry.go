// Package tmwal implements the write-ahead log entry format of spec
// §6.4: one tag byte, a big-endian u64 length, and a payload, with a
// compact fixed-width encoding for timeout entries. The storage backend
// that holds a sequence of these entries (spec §1's "Persistence ...
// WAL storage backend" is explicitly out of scope) is a small concrete
// addition in this package (FileWAL) kept for testability; only the
// entry codec itself is load-bearing for spec conformance.
package tmwal

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// Kind tags a WAL entry's payload, per spec §6.4.
type Kind uint8

const (
	KindConsensusMessage Kind = 0x01
	KindTimeout          Kind = 0x02
	KindProposedValue    Kind = 0x04
)

// Origin distinguishes a ProposedValue entry sourced from ordinary
// consensus gossip/parts reassembly from one synthesized during sync
// catch-up (spec §4.5's ProposedValue input).
type Origin uint8

const (
	OriginConsensus Origin = iota + 1
	OriginSync
)

// ProposedValue is the WAL's record of a value whose content became
// known to the host, mirroring tmengine's ProposedValue input (spec
// §4.5). It is defined here, rather than imported from tmengine, so
// that tmwal has no dependency on the coordinator it serves.
type ProposedValue struct {
	Height          tmconsensus.Height
	Round           tmconsensus.Round
	Value           tmconsensus.Value
	ProposerAddress tmconsensus.Address
	Origin          Origin
}

// Entry is a single WAL record. Only the field matching Kind is
// meaningful, matching the Kind+fields convention used throughout this
// module's sum types.
type Entry struct {
	Kind Kind

	ConsensusMessage tmcodec.ConsensusMessage
	Timeout          tmconsensus.Timeout
	ProposedValue    ProposedValue
}

// ConsensusMessageEntry wraps a signed vote or proposal for appending.
func ConsensusMessageEntry(m tmcodec.ConsensusMessage) Entry {
	return Entry{Kind: KindConsensusMessage, ConsensusMessage: m}
}

// TimeoutEntry wraps a fired timeout for appending.
func TimeoutEntry(t tmconsensus.Timeout) Entry {
	return Entry{Kind: KindTimeout, Timeout: t}
}

// ProposedValueEntry wraps a host-delivered value for appending.
func ProposedValueEntry(pv ProposedValue) Entry {
	return Entry{Kind: KindProposedValue, ProposedValue: pv}
}

// EntryCodec marshals and unmarshals WAL entry payloads. It extends
// [tmcodec.MarshalCodec] with the ProposedValue methods that codec
// interface omits, since ProposedValue is a WAL-only concept.
type EntryCodec interface {
	tmcodec.MarshalCodec

	MarshalProposedValue(ProposedValue) ([]byte, error)
	UnmarshalProposedValue([]byte, *ProposedValue) error
}

// stepCode/codeStep implement the "step codes 1..8" fixed mapping spec
// §6.4 specifies for the compact timeout encoding: the TimeoutKind enum
// already starts at 1 and has eight members, in exactly the order the
// spec lists them (Propose, Prevote, Precommit, Commit,
// PrevoteTimeLimit, PrecommitTimeLimit, PrevoteRebroadcast,
// PrecommitRebroadcast), so the step byte is just the TimeoutKind value.
func stepCode(k tmconsensus.TimeoutKind) byte { return byte(k) }

func codeStep(b byte) tmconsensus.TimeoutKind { return tmconsensus.TimeoutKind(b) }

// WriteEntry appends e to w in the §6.4 wire format.
func WriteEntry(w io.Writer, codec EntryCodec, e Entry) error {
	switch e.Kind {
	case KindTimeout:
		buf := make([]byte, 1+1+8)
		buf[0] = byte(KindTimeout)
		buf[1] = stepCode(e.Timeout.Kind)
		binary.BigEndian.PutUint64(buf[2:], uint64(int64(e.Timeout.Round)))
		_, err := w.Write(buf)
		return err

	case KindConsensusMessage:
		payload, err := codec.MarshalConsensusMessage(e.ConsensusMessage)
		if err != nil {
			return fmt.Errorf("tmwal: marshal consensus message: %w", err)
		}
		return writeTagged(w, KindConsensusMessage, payload)

	case KindProposedValue:
		payload, err := codec.MarshalProposedValue(e.ProposedValue)
		if err != nil {
			return fmt.Errorf("tmwal: marshal proposed value: %w", err)
		}
		return writeTagged(w, KindProposedValue, payload)

	default:
		return fmt.Errorf("tmwal: unknown entry kind %d", e.Kind)
	}
}

func writeTagged(w io.Writer, kind Kind, payload []byte) error {
	header := make([]byte, 1+8)
	header[0] = byte(kind)
	binary.BigEndian.PutUint64(header[1:], uint64(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadEntry reads and decodes the next entry from r.
func ReadEntry(r io.Reader, codec EntryCodec) (Entry, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Entry{}, err // may be io.EOF; callers should treat that as end-of-log
	}

	switch Kind(tag[0]) {
	case KindTimeout:
		rest := make([]byte, 1+8)
		if _, err := io.ReadFull(r, rest); err != nil {
			return Entry{}, fmt.Errorf("tmwal: short timeout entry: %w", err)
		}
		round := tmconsensus.Round(int32(int64(binary.BigEndian.Uint64(rest[1:]))))
		return Entry{
			Kind: KindTimeout,
			Timeout: tmconsensus.Timeout{
				Kind:  codeStep(rest[0]),
				Round: round,
			},
		}, nil

	case KindConsensusMessage:
		payload, err := readTaggedPayload(r)
		if err != nil {
			return Entry{}, err
		}
		var cm tmcodec.ConsensusMessage
		if err := codec.UnmarshalConsensusMessage(payload, &cm); err != nil {
			return Entry{}, fmt.Errorf("tmwal: unmarshal consensus message: %w", err)
		}
		return Entry{Kind: KindConsensusMessage, ConsensusMessage: cm}, nil

	case KindProposedValue:
		payload, err := readTaggedPayload(r)
		if err != nil {
			return Entry{}, err
		}
		var pv ProposedValue
		if err := codec.UnmarshalProposedValue(payload, &pv); err != nil {
			return Entry{}, fmt.Errorf("tmwal: unmarshal proposed value: %w", err)
		}
		return Entry{Kind: KindProposedValue, ProposedValue: pv}, nil

	default:
		return Entry{}, fmt.Errorf("tmwal: unknown entry tag 0x%02x", tag[0])
	}
}

func readTaggedPayload(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("tmwal: short entry length: %w", err)
	}
	n := binary.BigEndian.Uint64(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("tmwal: short entry payload: %w", err)
	}
	return payload, nil
}

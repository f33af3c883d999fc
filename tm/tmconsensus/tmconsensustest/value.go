// Package tmconsensustest provides concrete types and fixtures for
// tests that need real values, validators, and signatures without an
// application host: a bytes-backed [tmconsensus.Value], a deterministic
// Ed25519 validator fixture, and a channel-backed consensus handler.
package tmconsensustest

import (
	"golang.org/x/crypto/blake2b"

	"github.com/bft-sm/tmcore/tm/tmcodec"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// MockValue is a [tmconsensus.Value] whose Id is the BLAKE2b-256 digest
// of its bytes.
type MockValue []byte

var _ tmconsensus.Value = MockValue(nil)

// ID implements [tmconsensus.Value].
func (v MockValue) ID() tmconsensus.Hash {
	return tmconsensus.Hash(blake2b.Sum256(v))
}

// MockValueCodec is the [tmcodec.ValueCodec] for MockValue: the value's
// bytes are its own wire form.
type MockValueCodec struct{}

var _ tmcodec.ValueCodec = MockValueCodec{}

func (MockValueCodec) Encode(v tmconsensus.Value) ([]byte, error) {
	return []byte(v.(MockValue)), nil
}

func (MockValueCodec) Decode(b []byte) (tmconsensus.Value, error) {
	return MockValue(b), nil
}

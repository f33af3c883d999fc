package gcrypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"context"
	"fmt"
)

// RegisterEd25519 registers the Ed25519 key type with reg.
// There is no global registry; it is the caller's responsibility
// to register as needed.
func RegisterEd25519(reg *Registry) {
	reg.Register("ed25519", Ed25519PubKey{}, NewEd25519PubKey)
}

// Ed25519PubKey is a [PubKey] backed by a standard library Ed25519 key.
type Ed25519PubKey ed25519.PublicKey

// NewEd25519PubKey constructs an Ed25519PubKey from its raw bytes.
func NewEd25519PubKey(b []byte) (PubKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf(
			"gcrypto: invalid ed25519 public key length: want %d, got %d",
			ed25519.PublicKeySize, len(b),
		)
	}

	out := make(Ed25519PubKey, ed25519.PublicKeySize)
	copy(out, b)
	return out, nil
}

func (k Ed25519PubKey) PubKeyBytes() []byte {
	return []byte(k)
}

// Address returns the first 20 bytes of the SHA-256 digest of k's raw bytes.
func (k Ed25519PubKey) Address() []byte {
	sum := sha256.Sum256(k.PubKeyBytes())
	return sum[:20]
}

func (k Ed25519PubKey) Verify(msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(k), msg, sig)
}

func (k Ed25519PubKey) Equal(other PubKey) bool {
	o, ok := other.(Ed25519PubKey)
	if !ok {
		return false
	}

	return bytes.Equal(k.PubKeyBytes(), o.PubKeyBytes())
}

// Ed25519Signer signs with a standard library Ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  Ed25519PubKey
}

// NewEd25519Signer wraps priv as a [Signer].
func NewEd25519Signer(priv ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{
		priv: priv,
		pub:  Ed25519PubKey(priv.Public().(ed25519.PublicKey)),
	}
}

func (s Ed25519Signer) PubKey() PubKey {
	return s.pub
}

func (s Ed25519Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, input), nil
}

package gcrypto

import "fmt"

// pubKeyPrefixLen is the fixed width, in bytes, of the type prefix that
// [Registry.Marshal] writes ahead of a public key's raw bytes.
// Registered prefix strings longer than this are truncated;
// shorter ones are zero-padded.
const pubKeyPrefixLen = 4

// NewPubKeyFunc constructs a [PubKey] from its raw, type-specific byte
// representation, as produced by that key type's PubKeyBytes method.
type NewPubKeyFunc func([]byte) (PubKey, error)

// Registry maps short string prefixes to public key types,
// so that a [PubKey] of unknown concrete type can be marshaled to bytes
// and later unmarshaled back to the correct type.
//
// There is no global registry; it is the caller's responsibility to
// construct one and register the key types the application supports,
// typically via the RegisterXXX functions such as [RegisterEd25519]
// and [RegisterSecp256k1].
type Registry struct {
	byPrefix map[[pubKeyPrefixLen]byte]registryEntry
}

type registryEntry struct {
	prefix string
	new    NewPubKeyFunc
}

// Register associates prefix with the public key type whose zero value
// is the one passed in for documentation purposes,
// and whose byte representation is reconstructed using newFn.
//
// Only the first [pubKeyPrefixLen] bytes of prefix are significant on the wire;
// callers should choose prefixes that remain distinct once truncated.
func (r *Registry) Register(prefix string, _ PubKey, newFn NewPubKeyFunc) {
	if r.byPrefix == nil {
		r.byPrefix = make(map[[pubKeyPrefixLen]byte]registryEntry)
	}

	r.byPrefix[prefixKey(prefix)] = registryEntry{prefix: prefix, new: newFn}
}

// Marshal writes k's type prefix followed by its raw bytes.
//
// Marshal panics if k's concrete type was never passed to [Registry.Register]
// with a matching prefix, since that indicates a programming error:
// every key type an application constructs must also be registered.
func (r *Registry) Marshal(k PubKey) []byte {
	prefix := r.prefixFor(k)

	b := k.PubKeyBytes()
	out := make([]byte, pubKeyPrefixLen+len(b))
	copy(out, prefix[:])
	copy(out[pubKeyPrefixLen:], b)
	return out
}

// Unmarshal reverses [Registry.Marshal], looking up the registered
// constructor matching the encoded prefix.
func (r *Registry) Unmarshal(b []byte) (PubKey, error) {
	if len(b) < pubKeyPrefixLen {
		return nil, fmt.Errorf("gcrypto: encoded public key too short (%d bytes)", len(b))
	}

	var prefix [pubKeyPrefixLen]byte
	copy(prefix[:], b[:pubKeyPrefixLen])

	e, ok := r.byPrefix[prefix]
	if !ok {
		return nil, fmt.Errorf("no registered public key type for prefix %q", string(prefix[:]))
	}

	return e.new(b[pubKeyPrefixLen:])
}

// prefixFor returns the registered prefix whose constructor produces
// a key of k's concrete type, determined by round-tripping k's bytes.
func (r *Registry) prefixFor(k PubKey) [pubKeyPrefixLen]byte {
	for prefix, e := range r.byPrefix {
		candidate, err := e.new(k.PubKeyBytes())
		if err != nil {
			continue
		}
		if candidate.Equal(k) {
			return prefix
		}
	}
	panic(fmt.Errorf("gcrypto: no registered public key type matches %T; call Registry.Register first", k))
}

func prefixKey(s string) [pubKeyPrefixLen]byte {
	var out [pubKeyPrefixLen]byte
	copy(out[:], s)
	return out
}

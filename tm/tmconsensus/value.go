package tmconsensus

// Hash is the compact, hashable representation of an opaque [Value].
// It also doubles as the Id type for votes and proposals, matching the
// spec's requirement that Value carries an Id distinct from the value
// itself.
type Hash [32]byte

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Value is an application-level value: one opaque decision per height.
// The core never inspects a Value beyond its Id; building, validating,
// and interpreting values is entirely the application host's concern
// (see tmconsensus.Host in tmengine).
type Value interface {
	// ID returns the compact representation other core types key on.
	ID() Hash
}

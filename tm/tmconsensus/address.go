package tmconsensus

import (
	"encoding/json"

	"github.com/bft-sm/tmcore/gcrypto"
)

// Address identifies a validator. It is derived from a validator's
// public key via PubKeyToAddress, and is totally ordered via ordinary
// Go string comparison, matching the teacher's convention of treating
// raw address bytes as a map/sort key by way of a string conversion.
type Address string

// PubKeyToAddress derives the Address for pk.
func PubKeyToAddress(pk gcrypto.PubKey) Address {
	return Address(pk.Address())
}

// MarshalJSON encodes a's raw bytes as a base64 JSON string, so that
// addresses that are not valid UTF-8 survive a JSON round trip.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal([]byte(a))
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *Address) UnmarshalJSON(b []byte) error {
	var raw []byte
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Address(raw)
	return nil
}

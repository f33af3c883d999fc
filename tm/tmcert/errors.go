package tmcert

import "errors"

// Errors returned by Verify, matching the InvalidCertificate kinds of
// spec §7.
var (
	ErrInsufficientPower = errors.New("tmcert: insufficient voting power")
	ErrDuplicateSigner   = errors.New("tmcert: duplicate signer")
	ErrBadSignature      = errors.New("tmcert: invalid signature")
	ErrUnknownSigner     = errors.New("tmcert: signer not in validator set")
	ErrEmptyCertificate  = errors.New("tmcert: certificate has no signatures")
)

// Package tmcert builds and verifies the three certificate kinds used
// for liveness and commit evidence: CommitCertificate, PolkaCertificate,
// and RoundCertificate (spec §3, §4.5).
//
// Grounded on the original source's code/crates/common/src/certificate.rs
// (CommitSignature, AggregatedSignature, CommitCertificate::new/verify),
// adapted to this module's SignedVote/ValidatorSet shapes and to the
// spec's stated verification policy: aggregate the voting power of
// signers present in the validator set, verify each signature
// individually, reject on duplicate signer or on insufficient aggregate
// weight (spec §4.5, §7, scenario S5).
package tmcert

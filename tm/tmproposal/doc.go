// Package tmproposal implements the proposal keeper of spec §4.4: an
// append-only index of every (proposal, validity) the driver has seen,
// keyed by (height, round, value id).
//
// Grounded on the original source's code/common/src/proposal.rs for the
// Proposal shape and spec §9's mandate that in-place validity downgrade
// is structurally impossible rather than a runtime check.
package tmproposal

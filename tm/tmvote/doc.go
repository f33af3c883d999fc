// Package tmvote implements per-round vote tallying and threshold
// detection (spec §4.2): the pure arithmetic the vote keeper builds on.
//
// Grounded on the original source's malachitebft-core-votekeeper
// count/round_votes modules, adapted from a generic Ctx::Vote model to
// tmconsensus's concrete Vote/Hash types.
package tmvote

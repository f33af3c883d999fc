// Package tmvotekeeper implements the per-height vote keeper of spec
// §4.3: it tallies incoming votes per round via tmvote.Count, detects
// equivocation, and emits at-most-once threshold events for the driver
// to translate into round state machine inputs.
//
// Grounded on the original source's Code/vote/src/keeper.rs (apply_vote,
// threshold_to_message, is_skip) and the teacher's deleted
// tmmirror/internal/tmi/votes.go for the idempotence-by-version
// vocabulary, generalized to tmconsensus's opaque Value model.
package tmvotekeeper

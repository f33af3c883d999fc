// Package tmconsensus defines the shared, application-agnostic data
// model for the consensus core: heights, rounds, values, validators,
// votes, proposals, timeouts, and the threshold arithmetic that every
// other tm package builds on.
//
// Nothing in this package performs I/O or holds mutable state beyond
// straightforward value types; the stateful pieces (the round state
// machine, the vote keeper, the driver, the coordinator) live in
// tmround, tmvotekeeper, tmheight, and tmengine respectively.
package tmconsensus

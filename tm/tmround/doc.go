// Package tmround implements the pure per-round Tendermint automaton of
// spec §4.1: a single apply(state, info, input) function with no I/O and
// no time reads. Every output is a value returned to the caller; nothing
// here ever blocks or mutates shared state.
//
// Grounded on the original source's Code/round/src/events.rs (the
// classical, non-FaB input vocabulary, which maps onto spec §4.1's input
// list input-for-input) together with code/crates/round/src/output.rs's
// builder-method style for constructing outputs.
package tmround

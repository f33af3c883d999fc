// Package tmheight implements the per-height driver of spec §4.4: the
// component that owns one height's round state machine, vote keeper,
// and proposal keeper, and turns external inputs (proposals, votes,
// timeouts, certificates) into round-machine inputs and, ultimately,
// tmround.Output values for the coordinator to act on.
//
// Grounded on the teacher's deleted ConsensusManager request/response
// channel-actor pattern for the surrounding shape, and on
// original_source/code/crates/consensus/src/handle/driver.rs
// (apply_driver_input/process_driver_output) for the input-routing and
// output-replay algorithm: driver outputs that themselves require a
// state-machine transition (NewRound, a just-cast vote) are fed back in
// immediately, so Process can return a flat, ordered output slice.
package tmheight

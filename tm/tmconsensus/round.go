package tmconsensus

// Round is an attempt within a height. NilRound is the sentinel
// "no round yet" value; concrete rounds start at 0 and only increase.
//
// Round is totally ordered with NilRound < 0 < 1 < ..., matching the
// spec's Nil < 0 < 1 < … ordering directly since NilRound is -1.
type Round int32

// NilRound is the sentinel round meaning "no round has been entered yet",
// used as the zero value for fields like a validator's valid/locked round
// before any polka has been observed.
const NilRound Round = -1

// IsNil reports whether r is the NilRound sentinel.
func (r Round) IsNil() bool {
	return r == NilRound
}

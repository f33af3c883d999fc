// Package glog contains tiny helpers for structured logging with [log/slog],
// shared across the engine's subsystems.
package glog

import (
	"encoding/hex"
	"log/slog"
)

// Hex wraps a byte slice so that it is logged as a hex string via
// [slog.LogValuer], deferring the encoding until the log record is
// actually emitted (or skipped, if the level is disabled).
type Hex []byte

// String satisfies [fmt.Stringer].
func (h Hex) String() string {
	if len(h) == 0 {
		return ""
	}
	return hex.EncodeToString(h)
}

// LogValue satisfies [slog.LogValuer].
func (h Hex) LogValue() slog.Value {
	return slog.StringValue(h.String())
}

// Package gtest contains small helpers shared by the test suites of
// multiple packages in this module.
package gtest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a [*slog.Logger] that writes through t,
// so that log output from background goroutines is only
// shown by `go test` when the owning test fails or is run verbosely.
func NewLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slogt.New(t)
}

// ScopedContext-style helpers are deliberately omitted here;
// individual test packages construct their own [context.Context] values
// since cancellation scoping tends to be specific to the test at hand.

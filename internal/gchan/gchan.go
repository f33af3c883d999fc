// Package gchan contains small helpers for context-aware channel sends and
// request/response round trips, used throughout the engine's actor-style
// kernels so that a blocked send never outlives a canceled context.
package gchan

import (
	"context"
	"log/slog"
)

// SendC sends val on ch, respecting ctx cancellation.
// If ctx is canceled before the send completes, SendC logs msg at warn level
// and returns false. Otherwise it returns true.
func SendC[T any](ctx context.Context, log *slog.Logger, ch chan<- T, val T, msg string) bool {
	select {
	case ch <- val:
		return true
	case <-ctx.Done():
		if log != nil {
			log.Warn("Context canceled while "+msg, "cause", context.Cause(ctx))
		}
		return false
	}
}

// RecvC receives a value from ch, respecting ctx cancellation.
// The second return value is false if ctx was canceled first.
func RecvC[T any](ctx context.Context, log *slog.Logger, ch <-chan T, msg string) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-ctx.Done():
		if log != nil {
			log.Warn("Context canceled while "+msg, "cause", context.Cause(ctx))
		}
		var zero T
		return zero, false
	}
}

// ReqResp sends req on reqCh and then waits for a value on respCh,
// respecting ctx cancellation at each step.
// The boolean result is false if ctx was canceled before a response arrived.
func ReqResp[Req, Resp any](
	ctx context.Context, log *slog.Logger,
	reqCh chan<- Req, req Req,
	respCh <-chan Resp,
	msg string,
) (Resp, bool) {
	if !SendC(ctx, log, reqCh, req, "sending "+msg+" request") {
		var zero Resp
		return zero, false
	}

	return RecvC(ctx, log, respCh, "receiving "+msg+" response")
}

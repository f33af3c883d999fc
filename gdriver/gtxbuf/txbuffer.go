// Package gtxbuf contains a generic, goroutine-safe buffer of pending
// transactions against a piece of application state.
//
// The consensus coordinator uses a [Buffer] tracking its current
// height (see the Buffered error kind in tmengine) to hold inputs that
// arrived for heights the driver has not started yet, so that they can
// be replayed in arrival order once their height begins.
package gtxbuf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bft-sm/tmcore/internal/gchan"
)

// AddTxFunc attempts to apply tx against s, returning the new state.
// An application reports a permanently invalid transaction by returning
// a [TxInvalidError]. The Buffer does not treat it differently from other
// errors: [Buffer.AddTx] returns either kind to its caller, and
// [Buffer.Rebase] drops a transaction whose reapply fails with either kind.
type AddTxFunc[S, T any] func(ctx context.Context, s *S, tx T) (*S, error)

// DeleterFunc returns a predicate used to exclude transactions
// from the buffer, given the reject list passed to [Buffer.Rebase].
type DeleterFunc[T, R any] func(ctx context.Context, reject []R) func(T) bool

// TxInvalidError indicates that a transaction was rejected by the
// application as permanently invalid, as opposed to a transient failure.
type TxInvalidError struct {
	Err error
}

func (e TxInvalidError) Error() string {
	return fmt.Sprintf("invalid transaction: %s", e.Err)
}

func (e TxInvalidError) Unwrap() error {
	return e.Err
}

// Buffer holds an ordered set of pending transactions of type T,
// applied in order against a state of type S.
//
// Buffer runs a dedicated goroutine (its kernel) so that all reads
// and writes of the buffered state are serialized without an explicit lock.
type Buffer[S, T any, R any] struct {
	log *slog.Logger

	addTx   AddTxFunc[S, T]
	deleter DeleterFunc[T, R]

	initReq     chan initRequest[S]
	addTxReq    chan addTxRequest[T]
	bufferedReq chan bufferedRequest[T]
	rebaseReq   chan rebaseRequest[S, T, R]

	done chan struct{}
}

type initRequest[S any] struct {
	State *S
	Resp  chan bool
}

type addTxRequest[T any] struct {
	Tx   T
	Resp chan error
}

type bufferedRequest[T any] struct {
	Dst  []T
	Resp chan []T
}

type rebaseRequest[S, T, R any] struct {
	State  *S
	Reject []R
	Resp   chan rebaseResult[T]
}

type rebaseResult[T any] struct {
	Invalid []T
	Err     error
}

// New returns a new, uninitialized Buffer.
// The returned value does nothing useful until [Buffer.Initialize] is called.
func New[S, T, R any](
	ctx context.Context,
	log *slog.Logger,
	addTx AddTxFunc[S, T],
	deleter DeleterFunc[T, R],
) *Buffer[S, T, R] {
	b := &Buffer[S, T, R]{
		log: log,

		addTx:   addTx,
		deleter: deleter,

		initReq:     make(chan initRequest[S]),
		addTxReq:    make(chan addTxRequest[T]),
		bufferedReq: make(chan bufferedRequest[T]),
		rebaseReq:   make(chan rebaseRequest[S, T, R]),

		done: make(chan struct{}),
	}

	go b.kernel(ctx)

	return b
}

// Wait blocks until b's background goroutine has returned.
// Initiate a shutdown by canceling the context passed to [New].
func (b *Buffer[S, T, R]) Wait() {
	<-b.done
}

// Initialize sets the initial state to track, and must be called exactly
// once before any other method. Calling it twice panics, since that
// indicates a bug in the caller's sequencing of height setup.
//
// The returned bool is false if ctx was canceled before the kernel
// accepted the initialization.
func (b *Buffer[S, T, R]) Initialize(ctx context.Context, s *S) bool {
	req := initRequest[S]{State: s, Resp: make(chan bool)}
	accepted, ok := gchan.ReqResp(ctx, b.log, b.initReq, req, req.Resp, "initializing tx buffer")
	if ok && !accepted {
		panic(fmt.Errorf("gtxbuf: Initialize called twice"))
	}
	return ok
}

// AddTx attempts to apply tx against the buffer's current state.
// If the application reports the transaction as permanently invalid,
// it is not added, and the returned error wraps [TxInvalidError].
func (b *Buffer[S, T, R]) AddTx(ctx context.Context, tx T) error {
	req := addTxRequest[T]{Tx: tx, Resp: make(chan error, 1)}
	err, ok := gchan.ReqResp(ctx, b.log, b.addTxReq, req, req.Resp, "adding buffered tx")
	if !ok {
		return context.Cause(ctx)
	}
	return err
}

// Buffered returns the currently buffered transactions, in the order
// they were accepted, appending to dst if it has spare capacity.
func (b *Buffer[S, T, R]) Buffered(ctx context.Context, dst []T) []T {
	req := bufferedRequest[T]{Dst: dst, Resp: make(chan []T, 1)}
	out, ok := gchan.ReqResp(ctx, b.log, b.bufferedReq, req, req.Resp, "reading buffered txs")
	if !ok {
		return dst
	}
	return out
}

// Rebase replaces the tracked state with newState, drops any buffered
// transaction matched by the deleter built from reject, and replays the
// remaining transactions against newState in their original order.
//
// Transactions that fail to reapply against newState are returned in inv
// and are dropped from the buffer.
func (b *Buffer[S, T, R]) Rebase(ctx context.Context, newState *S, reject []R) (inv []T, err error) {
	req := rebaseRequest[S, T, R]{
		State:  newState,
		Reject: reject,
		Resp:   make(chan rebaseResult[T], 1),
	}
	res, ok := gchan.ReqResp(ctx, b.log, b.rebaseReq, req, req.Resp, "rebasing tx buffer")
	if !ok {
		return nil, context.Cause(ctx)
	}
	return res.Invalid, res.Err
}

func (b *Buffer[S, T, R]) kernel(ctx context.Context) {
	defer close(b.done)

	var state *S
	var initialized bool
	var txs []T

	for {
		select {
		case <-ctx.Done():
			b.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			return

		case req := <-b.initReq:
			if initialized {
				// Reject the request; Initialize panics in the caller's goroutine.
				_ = gchan.SendC(ctx, b.log, req.Resp, false, "rejecting repeated tx buffer initialization")
				continue
			}
			state = req.State
			initialized = true
			_ = gchan.SendC(ctx, b.log, req.Resp, true, "acknowledging tx buffer initialization")

		case req := <-b.addTxReq:
			newState, err := b.addTx(ctx, state, req.Tx)
			if err != nil {
				_ = gchan.SendC(ctx, b.log, req.Resp, err, "sending AddTx error")
				continue
			}
			state = newState
			txs = append(txs, req.Tx)
			_ = gchan.SendC[error](ctx, b.log, req.Resp, nil, "sending AddTx success")

		case req := <-b.bufferedReq:
			dst := append(req.Dst, txs...)
			_ = gchan.SendC(ctx, b.log, req.Resp, dst, "sending buffered txs")

		case req := <-b.rebaseReq:
			reject := b.deleter(ctx, req.Reject)
			kept := txs[:0:0]
			var invalid []T

			s := req.State
			for _, tx := range txs {
				if reject(tx) {
					continue
				}
				ns, err := b.addTx(ctx, s, tx)
				if err != nil {
					invalid = append(invalid, tx)
					continue
				}
				s = ns
				kept = append(kept, tx)
			}

			state = s
			txs = kept

			_ = gchan.SendC(
				ctx, b.log, req.Resp,
				rebaseResult[T]{Invalid: invalid},
				"sending rebase result",
			)
		}
	}
}

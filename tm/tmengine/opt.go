package tmengine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bft-sm/tmcore/gcrypto"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// Opt configures [New]. Required options are validated together, so a
// misconfigured engine reports every missing piece at once rather than
// one per construction attempt.
type Opt func(*options)

type options struct {
	cfg    Config
	signer gcrypto.Signer
	wal    WAL
}

// WithInitialHeight sets the height the engine expects its first
// StartHeight input to name.
func WithInitialHeight(h tmconsensus.Height) Opt {
	return func(o *options) { o.cfg.InitialHeight = h }
}

// WithAddress sets this validator's own address. Required.
func WithAddress(a tmconsensus.Address) Opt {
	return func(o *options) { o.cfg.Address = a }
}

// WithThresholdParams sets the quorum fractions. Required.
func WithThresholdParams(tp tmconsensus.ThresholdParams) Opt {
	return func(o *options) { o.cfg.ThresholdParams = tp }
}

// WithValuePayload sets how proposal content travels; defaults to
// ProposalAndParts.
func WithValuePayload(vp ValuePayload) Opt {
	return func(o *options) { o.cfg.ValuePayload = vp }
}

// WithVoteSyncMode sets the catch-up mode; defaults to Rebroadcast.
func WithVoteSyncMode(m VoteSyncMode) Opt {
	return func(o *options) { o.cfg.VoteSyncMode = m }
}

// WithTimeouts sets the per-kind timer durations and growth deltas.
func WithTimeouts(tc TimeoutConfig) Opt {
	return func(o *options) { o.cfg.Timeouts = tc }
}

// WithSyncConfig sets the sync channel's tunables.
func WithSyncConfig(sc SyncConfig) Opt {
	return func(o *options) { o.cfg.Sync = sc }
}

// WithRebroadcastIntervals sets the independent prevote/precommit
// rebroadcast cadences.
func WithRebroadcastIntervals(prevote, precommit time.Duration) Opt {
	return func(o *options) {
		o.cfg.PrevoteRebroadcastInterval = prevote
		o.cfg.PrecommitRebroadcastInterval = precommit
	}
}

// WithSigner sets the signer for this validator's votes and proposals.
// Required.
func WithSigner(s gcrypto.Signer) Opt {
	return func(o *options) { o.signer = s }
}

// WithWAL sets the write-ahead log backend. Required.
func WithWAL(w WAL) Opt {
	return func(o *options) { o.wal = w }
}

// New validates opts and returns a Coordinator ready to accept
// StartHeight as its first input. ctx bounds the engine's background
// work; cancel it and call Wait for a clean shutdown.
func New(ctx context.Context, log *slog.Logger, opts ...Opt) (*Coordinator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var errs []error
	if o.signer == nil {
		errs = append(errs, errors.New("tmengine: WithSigner option is required"))
	}
	if o.wal == nil {
		errs = append(errs, errors.New("tmengine: WithWAL option is required"))
	}
	if o.cfg.Address == "" {
		errs = append(errs, errors.New("tmengine: WithAddress option is required"))
	}
	if o.cfg.ThresholdParams.Quorum.Denominator == 0 ||
		o.cfg.ThresholdParams.Honest.Denominator == 0 ||
		o.cfg.ThresholdParams.CertificateQuorum.Denominator == 0 {
		errs = append(errs, errors.New("tmengine: WithThresholdParams option is required, with all three fractions set"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if o.cfg.ValuePayload == 0 {
		o.cfg.ValuePayload = ProposalAndParts
	}
	if o.cfg.VoteSyncMode == 0 {
		o.cfg.VoteSyncMode = Rebroadcast
	}

	return newCoordinator(ctx, o.cfg, o.signer, o.wal, log), nil
}

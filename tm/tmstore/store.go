// Package tmstore defines the persistence contract of spec §6.4's
// block store: a mapping from Height to the decided value's bytes and
// its commit certificate, with pruning below a retain threshold. The
// WAL storage backend and block store are both named out of scope in
// spec §1 as external collaborators; this package still specifies the
// Go interface every implementation must satisfy, plus two concrete
// implementations ([tmmemstore] and [tmsqlite]) kept as reference
// backends for tests and single-node deployments.
package tmstore

import (
	"context"
	"errors"

	"github.com/bft-sm/tmcore/tm/tmcert"
	"github.com/bft-sm/tmcore/tm/tmconsensus"
)

// ErrHeightNotFound is returned by LoadDecision when no decision has
// been saved for the requested height, whether because it hasn't been
// decided yet or because it was pruned.
var ErrHeightNotFound = errors.New("tmstore: height not found")

// Decision is one committed height's persisted record.
type Decision struct {
	Height     tmconsensus.Height
	ValueBytes []byte
	Cert       tmcert.CommitCertificate
}

// BlockStore persists decided values and their commit certificates, and
// supports pruning old heights (spec §6.4).
type BlockStore interface {
	// SaveDecision persists d. Saving the same height twice with an
	// identical value and certificate is a no-op; saving a different
	// value or certificate for an already-saved height is a caller bug
	// and implementations may return an error for it.
	SaveDecision(ctx context.Context, d Decision) error

	// LoadDecision returns the decision saved for h, or ErrHeightNotFound.
	LoadDecision(ctx context.Context, h tmconsensus.Height) (Decision, error)

	// TipHeight returns the highest height saved, or ErrHeightNotFound if
	// the store is empty.
	TipHeight(ctx context.Context) (tmconsensus.Height, error)

	// PruneBelow deletes every decision for a height strictly less than
	// retain. Pruning is monotonic: implementations may reject a retain
	// height lower than a previous call's.
	PruneBelow(ctx context.Context, retain tmconsensus.Height) error
}

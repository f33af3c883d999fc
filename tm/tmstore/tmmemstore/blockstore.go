// Package tmmemstore is an in-memory [tmstore.BlockStore], kept from the
// teacher's deleted tmmemstore package of the same name and purpose:
// a store with no persistence guarantees at all, useful for tests and
// for a single-process demo that doesn't need to survive a restart.
package tmmemstore

import (
	"context"
	"sync"

	"github.com/bft-sm/tmcore/tm/tmconsensus"
	"github.com/bft-sm/tmcore/tm/tmstore"
)

// BlockStore is a [tmstore.BlockStore] backed by a plain map.
type BlockStore struct {
	mu        sync.RWMutex
	decisions map[tmconsensus.Height]tmstore.Decision
	tip       tmconsensus.Height
	hasTip    bool
	retain    tmconsensus.Height
}

// New returns an empty BlockStore.
func New() *BlockStore {
	return &BlockStore{decisions: make(map[tmconsensus.Height]tmstore.Decision)}
}

var _ tmstore.BlockStore = (*BlockStore)(nil)

func (s *BlockStore) SaveDecision(_ context.Context, d tmstore.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decisions[d.Height] = d
	if !s.hasTip || d.Height > s.tip {
		s.tip = d.Height
		s.hasTip = true
	}
	return nil
}

func (s *BlockStore) LoadDecision(_ context.Context, h tmconsensus.Height) (tmstore.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.decisions[h]
	if !ok {
		return tmstore.Decision{}, tmstore.ErrHeightNotFound
	}
	return d, nil
}

func (s *BlockStore) TipHeight(_ context.Context) (tmconsensus.Height, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasTip {
		return 0, tmstore.ErrHeightNotFound
	}
	return s.tip, nil
}

func (s *BlockStore) PruneBelow(_ context.Context, retain tmconsensus.Height) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if retain < s.retain {
		return nil
	}
	s.retain = retain

	for h := range s.decisions {
		if h < retain {
			delete(s.decisions, h)
		}
	}
	return nil
}

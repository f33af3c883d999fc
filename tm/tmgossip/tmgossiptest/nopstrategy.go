package tmgossiptest

import "github.com/bft-sm/tmcore/tm/tmgossip"

// NopStrategy is a no-op [tmgossip.Strategy] for use in tests where a
// placeholder strategy is needed.
type NopStrategy struct{}

func (NopStrategy) Start(<-chan tmgossip.Update) {}
func (NopStrategy) Wait()                        {}

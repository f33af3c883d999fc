package tmgossip

import (
	"context"
	"log/slog"

	"github.com/bft-sm/tmcore/internal/gchan"
	"github.com/bft-sm/tmcore/tm/tmp2p"
)

// ChattyStrategy is the simplest useful [Strategy]: every update is
// forwarded to the connection's broadcaster immediately, rebroadcasts
// included. It wastes bandwidth on large networks but is trivially
// correct, which makes it the right default for small validator sets
// and for tests.
type ChattyStrategy struct {
	log *slog.Logger

	b tmp2p.ConsensusBroadcaster

	startCh chan (<-chan Update)

	done chan struct{}
}

var _ Strategy = (*ChattyStrategy)(nil)

// NewChattyStrategy returns a ChattyStrategy forwarding to b. Its
// background work stops when ctx ends.
func NewChattyStrategy(ctx context.Context, log *slog.Logger, b tmp2p.ConsensusBroadcaster) *ChattyStrategy {
	s := &ChattyStrategy{
		log: log,

		b: b,

		startCh: make(chan (<-chan Update), 1),

		done: make(chan struct{}),
	}

	go s.mainLoop(ctx)
	return s
}

// Start implements [Strategy].
func (s *ChattyStrategy) Start(updates <-chan Update) {
	s.startCh <- updates
}

// Wait implements [Strategy].
func (s *ChattyStrategy) Wait() {
	<-s.done
}

func (s *ChattyStrategy) mainLoop(ctx context.Context) {
	defer close(s.done)

	var updates <-chan Update

	select {
	case <-ctx.Done():
		return
	case updates = <-s.startCh:
		s.startCh = nil
	}

	out := s.b.OutgoingConsensusMessages()

	for {
		select {
		case <-ctx.Done():
			return

		case u := <-updates:
			if !gchan.SendC(ctx, s.log, out, u.Message, "forwarding consensus message to broadcaster") {
				return
			}
		}
	}
}

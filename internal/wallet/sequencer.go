package wallet

import (
	"sync"

	"github.com/volleytrade/volley/internal/solana"
)

// ---------------------------------------------------------------------------
// Per-wallet sequencer
// ---------------------------------------------------------------------------

// Sequencer serializes chain submissions per wallet. Two transactions
// from the same wallet cannot be in flight at once or the second one
// lands on a stale nonce; different wallets proceed in parallel.
type Sequencer struct {
	mu    sync.Mutex
	slots map[solana.Pubkey]*slot
}

type slot struct {
	lock sync.Mutex
	refs int
}

// NewSequencer creates a sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{slots: make(map[solana.Pubkey]*slot)}
}

// Do runs fn while holding the wallet's slot. Calls for the same wallet
// execute in arrival order; calls for different wallets do not block
// each other.
func (s *Sequencer) Do(wallet solana.Pubkey, fn func()) {
	s.mu.Lock()
	sl, ok := s.slots[wallet]
	if !ok {
		sl = &slot{}
		s.slots[wallet] = sl
	}
	sl.refs++
	s.mu.Unlock()

	sl.lock.Lock()
	defer func() {
		sl.lock.Unlock()

		s.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(s.slots, wallet)
		}
		s.mu.Unlock()
	}()

	fn()
}

package watchlist

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/volleytrade/volley/internal/solana"
)

// ---------------------------------------------------------------------------
// Contract Watchlist — the mints the detector polls for tradability
// ---------------------------------------------------------------------------

// ErrDuplicate is returned when a contract is added twice.
var ErrDuplicate = fmt.Errorf("watchlist: already present")

// ErrNotFound is returned when a contract is not on the list.
var ErrNotFound = fmt.Errorf("watchlist: not present")

// Watchlist is the set of token mints the detector watches. Insertion
// order is preserved for stable listing.
type Watchlist struct {
	mu        sync.RWMutex
	contracts map[solana.Pubkey]struct{}
	order     []solana.Pubkey
}

// New creates an empty watchlist.
func New() *Watchlist {
	return &Watchlist{contracts: make(map[solana.Pubkey]struct{})}
}

// Add puts a mint address on the list. Mint addresses can be PDAs, so
// only the base58/length shape is checked.
func (w *Watchlist) Add(address string) error {
	if err := solana.ValidateAddress(address); err != nil {
		return err
	}
	addr := solana.Pubkey(address)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.contracts[addr]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, addr)
	}
	w.contracts[addr] = struct{}{}
	w.order = append(w.order, addr)

	log.Info().Str("contract", address).Int("total", len(w.order)).Msg("watchlist: added")
	return nil
}

// Remove takes a mint off the list.
func (w *Watchlist) Remove(address string) error {
	addr := solana.Pubkey(address)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.contracts[addr]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	delete(w.contracts, addr)
	for i, a := range w.order {
		if a == addr {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}

	log.Info().Str("contract", address).Msg("watchlist: removed")
	return nil
}

// Clear empties the list.
func (w *Watchlist) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.contracts = make(map[solana.Pubkey]struct{})
	w.order = nil
	log.Info().Msg("watchlist: cleared")
}

// Contains reports whether a mint is on the list.
func (w *Watchlist) Contains(addr solana.Pubkey) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.contracts[addr]
	return ok
}

// List returns all mints in insertion order.
func (w *Watchlist) List() []solana.Pubkey {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]solana.Pubkey, len(w.order))
	copy(out, w.order)
	return out
}

// Len returns the number of watched mints.
func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

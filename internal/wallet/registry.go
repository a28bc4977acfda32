package wallet

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/volleytrade/volley/internal/solana"
)

// ---------------------------------------------------------------------------
// Wallet Registry — the set of trading wallets the engine buys from
// ---------------------------------------------------------------------------

// ErrDuplicate is returned when a wallet is added twice.
var ErrDuplicate = fmt.Errorf("wallet: already registered")

// ErrNotFound is returned when a wallet address is not registered.
var ErrNotFound = fmt.Errorf("wallet: not registered")

// Registry holds the trading wallets. Insertion order is preserved so
// single-wallet trade mode always picks the same wallet.
type Registry struct {
	mu      sync.RWMutex
	wallets map[solana.Pubkey]solana.Account
	order   []solana.Pubkey
}

// NewRegistry creates an empty wallet registry.
func NewRegistry() *Registry {
	return &Registry{
		wallets: make(map[solana.Pubkey]solana.Account),
	}
}

// Add registers a watch-only wallet by address. The address must be a
// valid on-curve ed25519 key.
func (r *Registry) Add(address string) (solana.Account, error) {
	if err := solana.ValidateWalletAddress(address); err != nil {
		return solana.Account{}, err
	}
	return r.insert(solana.Account{Address: solana.Pubkey(address)})
}

// AddKey registers a wallet by its base58 private key. The address is
// derived; the key is kept only as the signing handle.
func (r *Registry) AddKey(privateKey string) (solana.Account, error) {
	acct, err := solana.DeriveAccount(privateKey)
	if err != nil {
		return solana.Account{}, err
	}
	return r.insert(acct)
}

func (r *Registry) insert(acct solana.Account) (solana.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.wallets[acct.Address]; exists {
		return solana.Account{}, fmt.Errorf("%w: %s", ErrDuplicate, acct.Address)
	}
	r.wallets[acct.Address] = acct
	r.order = append(r.order, acct.Address)

	log.Info().Str("wallet", string(acct.Address)).Int("total", len(r.order)).Msg("wallet: registered")
	return acct, nil
}

// Remove unregisters a wallet.
func (r *Registry) Remove(address string) error {
	addr := solana.Pubkey(address)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.wallets[addr]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	delete(r.wallets, addr)
	for i, a := range r.order {
		if a == addr {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.Info().Str("wallet", string(addr)).Msg("wallet: removed")
	return nil
}

// Clear removes all wallets.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets = make(map[solana.Pubkey]solana.Account)
	r.order = nil
	log.Info().Msg("wallet: cleared")
}

// Get looks up a wallet account by address.
func (r *Registry) Get(address solana.Pubkey) (solana.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.wallets[address]
	return acct, ok
}

// Addresses returns all wallet addresses in insertion order.
func (r *Registry) Addresses() []solana.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]solana.Pubkey, len(r.order))
	copy(out, r.order)
	return out
}

// Accounts returns all wallet accounts in insertion order.
func (r *Registry) Accounts() []solana.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]solana.Account, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.wallets[addr])
	}
	return out
}

// Len returns the number of registered wallets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

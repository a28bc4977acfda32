package sniper

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("sniper: already running")

	// ErrNotRunning is returned by Stop when no run is active.
	ErrNotRunning = errors.New("sniper: not running")

	// ErrNoWallets is returned by Start when the wallet registry is empty.
	ErrNoWallets = errors.New("sniper: no wallets registered")

	// ErrNoContracts is returned by Start when the watchlist is empty.
	ErrNoContracts = errors.New("sniper: watchlist is empty")
)

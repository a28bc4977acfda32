package config

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Trade parameters — operator-tunable, swappable between runs
// ---------------------------------------------------------------------------

// Trade modes.
const (
	ModeSingle = "single" // first wallet spends the full budget
	ModeAuto   = "auto"   // budget split evenly across all wallets
)

// TradeParams controls how the engine trades. A snapshot is taken when
// a run starts; changes apply to the next run.
type TradeParams struct {
	Mode           string  `json:"mode"`
	MaxSolPerTrade float64 `json:"max_sol_per_trade"`
	GasFee         float64 `json:"gas_fee"`
	SellDelay      float64 `json:"sell_delay"` // seconds after a filled buy
	SellPercentage float64 `json:"sell_percentage"`
}

// DefaultTradeParams returns the starting parameters.
func DefaultTradeParams() TradeParams {
	return TradeParams{
		Mode:           ModeAuto,
		MaxSolPerTrade: 0.1,
		GasFee:         0.001,
		SellDelay:      30,
		SellPercentage: 100,
	}
}

// Validate checks the parameters for internal consistency.
func (p TradeParams) Validate() error {
	if p.Mode != ModeSingle && p.Mode != ModeAuto {
		return fmt.Errorf("trade params: mode must be %q or %q, got %q", ModeSingle, ModeAuto, p.Mode)
	}
	if p.MaxSolPerTrade <= 0 {
		return fmt.Errorf("trade params: max_sol_per_trade must be positive, got %v", p.MaxSolPerTrade)
	}
	if p.GasFee < 0 {
		return fmt.Errorf("trade params: gas_fee must not be negative, got %v", p.GasFee)
	}
	if p.SellDelay < 0 {
		return fmt.Errorf("trade params: sell_delay must not be negative, got %v", p.SellDelay)
	}
	if p.SellPercentage <= 0 || p.SellPercentage > 100 {
		return fmt.Errorf("trade params: sell_percentage must be in (0, 100], got %v", p.SellPercentage)
	}
	return nil
}

// TradeStore holds the current trade parameters.
type TradeStore struct {
	mu     sync.RWMutex
	params TradeParams
}

// NewTradeStore creates a store seeded with defaults.
func NewTradeStore() *TradeStore {
	return &TradeStore{params: DefaultTradeParams()}
}

// Save validates and replaces the current parameters.
func (s *TradeStore) Save(p TradeParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()

	log.Info().
		Str("mode", p.Mode).
		Float64("max_sol", p.MaxSolPerTrade).
		Float64("sell_delay", p.SellDelay).
		Msg("config: trade params updated")
	return nil
}

// Load returns the current parameters.
func (s *TradeStore) Load() TradeParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

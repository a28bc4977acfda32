package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Stub Chain Client (for testing and development)
// ---------------------------------------------------------------------------

// TradeCall records one buy/sell invocation against the stub.
type TradeCall struct {
	Wallet     Pubkey
	Contract   Pubkey
	MaxSOL     decimal.Decimal
	Percentage float64
	GasFee     decimal.Decimal
	At         time.Time
}

// TransferCall records one transfer invocation against the stub.
type TransferCall struct {
	Wallet    Pubkey
	Token     string
	Amount    decimal.Decimal
	Direction TransferDirection
	At        time.Time
}

// StubClient is a mock chain client for testing. It tracks per-wallet
// call concurrency so tests can assert single-wallet serialization.
type StubClient struct {
	mu        sync.Mutex
	tradable  map[Pubkey]bool
	failNext  bool
	failBuys  map[Pubkey]bool
	callDelay time.Duration
	sigSeq    int

	buyCalls      []TradeCall
	sellCalls     []TradeCall
	transferCalls []TransferCall

	inFlight    map[Pubkey]int
	maxInFlight map[Pubkey]int
}

// NewStubClient creates a stub chain client.
func NewStubClient() *StubClient {
	return &StubClient{
		tradable:    make(map[Pubkey]bool),
		failBuys:    make(map[Pubkey]bool),
		inFlight:    make(map[Pubkey]int),
		maxInFlight: make(map[Pubkey]int),
	}
}

// SetTradable marks a contract tradable (or not).
func (s *StubClient) SetTradable(contract Pubkey, tradable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradable[contract] = tradable
}

// SetFailNext makes the next call fail.
func (s *StubClient) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

// FailBuysFor makes every buy from the given wallet fail.
func (s *StubClient) FailBuysFor(wallet Pubkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBuys[wallet] = true
}

// SetCallDelay makes every buy/sell/transfer take at least d.
func (s *StubClient) SetCallDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callDelay = d
}

// BuyCalls returns a copy of all recorded buy calls.
func (s *StubClient) BuyCalls() []TradeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeCall, len(s.buyCalls))
	copy(out, s.buyCalls)
	return out
}

// SellCalls returns a copy of all recorded sell calls.
func (s *StubClient) SellCalls() []TradeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeCall, len(s.sellCalls))
	copy(out, s.sellCalls)
	return out
}

// TransferCalls returns a copy of all recorded transfer calls.
func (s *StubClient) TransferCalls() []TransferCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TransferCall, len(s.transferCalls))
	copy(out, s.transferCalls)
	return out
}

// MaxInFlight returns the highest number of concurrent calls observed
// for a wallet. A value above 1 means serialization was violated.
func (s *StubClient) MaxInFlight(wallet Pubkey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight[wallet]
}

func (s *StubClient) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return true
	}
	return false
}

// enter tracks call start for a wallet and returns the paired exit func.
func (s *StubClient) enter(wallet Pubkey) func() {
	s.mu.Lock()
	s.inFlight[wallet]++
	if s.inFlight[wallet] > s.maxInFlight[wallet] {
		s.maxInFlight[wallet] = s.inFlight[wallet]
	}
	delay := s.callDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return func() {
		s.mu.Lock()
		s.inFlight[wallet]--
		s.mu.Unlock()
	}
}

func (s *StubClient) nextSig(prefix string) Signature {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sigSeq++
	return Signature(fmt.Sprintf("stub-%s-%d", prefix, s.sigSeq))
}

// --- Interface implementation ---

func (s *StubClient) IsTradable(_ context.Context, contract Pubkey) (bool, error) {
	if s.shouldFail() {
		return false, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tradable[contract], nil
}

func (s *StubClient) Buy(ctx context.Context, wallet Account, contract Pubkey, maxSOL, gasFee decimal.Decimal) (TradeResult, error) {
	done := s.enter(wallet.Address)
	defer done()

	s.mu.Lock()
	s.buyCalls = append(s.buyCalls, TradeCall{
		Wallet: wallet.Address, Contract: contract, MaxSOL: maxSOL, GasFee: gasFee, At: time.Now(),
	})
	failWallet := s.failBuys[wallet.Address]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return TradeResult{}, err
	}
	if failWallet || s.shouldFail() {
		return TradeResult{}, fmt.Errorf("stub: buy rejected for %s", wallet.Address)
	}

	// Simulated fill: 1000 tokens per SOL spent.
	return TradeResult{
		Signature: s.nextSig("buy"),
		Amount:    maxSOL.Mul(decimal.NewFromInt(1000)),
	}, nil
}

func (s *StubClient) Sell(ctx context.Context, wallet Account, contract Pubkey, percentage float64, gasFee decimal.Decimal) (TradeResult, error) {
	done := s.enter(wallet.Address)
	defer done()

	s.mu.Lock()
	s.sellCalls = append(s.sellCalls, TradeCall{
		Wallet: wallet.Address, Contract: contract, Percentage: percentage, GasFee: gasFee, At: time.Now(),
	})
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return TradeResult{}, err
	}
	if s.shouldFail() {
		return TradeResult{}, fmt.Errorf("stub: sell rejected for %s", wallet.Address)
	}

	return TradeResult{
		Signature: s.nextSig("sell"),
		Amount:    decimal.NewFromFloat(percentage),
	}, nil
}

func (s *StubClient) Transfer(ctx context.Context, wallet Account, token string, amount decimal.Decimal, direction TransferDirection) (Signature, error) {
	done := s.enter(wallet.Address)
	defer done()

	s.mu.Lock()
	s.transferCalls = append(s.transferCalls, TransferCall{
		Wallet: wallet.Address, Token: token, Amount: amount, Direction: direction, At: time.Now(),
	})
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.shouldFail() {
		return "", fmt.Errorf("stub: transfer rejected for %s", wallet.Address)
	}
	return s.nextSig("transfer"), nil
}

func (s *StubClient) Health(_ context.Context) error {
	if s.shouldFail() {
		return fmt.Errorf("stub: simulated RPC failure")
	}
	return nil
}

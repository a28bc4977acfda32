package sniper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/volleytrade/volley/internal/config"
	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/observability"
	"github.com/volleytrade/volley/internal/solana"
	"github.com/volleytrade/volley/internal/wallet"
	"github.com/volleytrade/volley/internal/watchlist"
)

// ---------------------------------------------------------------------------
// Sniper Engine — watchlist detection + multi-wallet buy/sell pipeline
// ---------------------------------------------------------------------------

// Config configures the engine's timing.
type Config struct {
	// How often the detector rescans the watchlist.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Per chain call bound. Accepted operations run to completion on
	// this budget even after Stop.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultConfig returns mainnet-suitable timing.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		CallTimeout:  10 * time.Second,
	}
}

// session is the state of one run. Detection and enqueue dedup maps are
// per-session: a restart gets a clean slate.
type session struct {
	ctx    context.Context
	params config.TradeParams

	mu       sync.Mutex
	probing  map[solana.Pubkey]bool
	handled  map[solana.Pubkey]bool
	enqueued map[string]bool // wallet|contract
}

// markProbing reserves a contract for an in-flight tradability check.
func (s *session) markProbing(contract solana.Pubkey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.probing[contract] || s.handled[contract] {
		return false
	}
	s.probing[contract] = true
	return true
}

func (s *session) doneProbing(contract solana.Pubkey) {
	s.mu.Lock()
	delete(s.probing, contract)
	s.mu.Unlock()
}

// markHandled claims a detection. Returns false if the contract was
// already handled this session.
func (s *session) markHandled(contract solana.Pubkey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled[contract] {
		return false
	}
	s.handled[contract] = true
	return true
}

// markEnqueued claims one (wallet, contract) buy slot.
func (s *session) markEnqueued(w solana.Pubkey, contract solana.Pubkey) bool {
	key := string(w) + "|" + string(contract)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueued[key] {
		return false
	}
	s.enqueued[key] = true
	return true
}

// Engine watches contracts for tradability and fires the buy-then-sell
// pipeline across the registered wallets.
type Engine struct {
	cfg     Config
	chain   solana.ChainClient
	wallets *wallet.Registry
	watch   *watchlist.Watchlist
	params  *config.TradeStore
	book    *ledger.Book
	seq     *wallet.Sequencer
	metrics *observability.Metrics

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	detectorDone chan struct{}
	sess         *session
	startedAt    time.Time

	// Stats.
	detections     atomic.Int64
	buysSubmitted  atomic.Int64
	buysSucceeded  atomic.Int64
	buysFailed     atomic.Int64
	sellsSubmitted atomic.Int64
	sellsSucceeded atomic.Int64
	sellsFailed    atomic.Int64
}

// NewEngine creates a sniper engine.
func NewEngine(cfg Config, chain solana.ChainClient, wallets *wallet.Registry,
	watch *watchlist.Watchlist, params *config.TradeStore, book *ledger.Book,
	seq *wallet.Sequencer, metrics *observability.Metrics) *Engine {

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Engine{
		cfg:     cfg,
		chain:   chain,
		wallets: wallets,
		watch:   watch,
		params:  params,
		book:    book,
		seq:     seq,
		metrics: metrics,
	}
}

// Start begins a run. Trade parameters are snapshotted at this moment;
// later edits apply to the next run.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if e.wallets.Len() == 0 {
		return ErrNoWallets
	}
	if e.watch.Len() == 0 {
		return ErrNoContracts
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		ctx:      ctx,
		params:   e.params.Load(),
		probing:  make(map[solana.Pubkey]bool),
		handled:  make(map[solana.Pubkey]bool),
		enqueued: make(map[string]bool),
	}

	e.running = true
	e.cancel = cancel
	e.detectorDone = make(chan struct{})
	e.sess = sess
	e.startedAt = time.Now()
	e.metrics.SniperRunning.Set(1)

	go e.runDetector(sess, e.detectorDone)

	log.Info().
		Str("mode", sess.params.Mode).
		Float64("max_sol", sess.params.MaxSolPerTrade).
		Int("wallets", e.wallets.Len()).
		Int("contracts", e.watch.Len()).
		Msg("sniper: run STARTED")
	return nil
}

// Stop ends the run. New buys stop immediately; chain calls already
// accepted (and pending delayed sells) still run to a terminal status.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	cancel := e.cancel
	done := e.detectorDone
	e.running = false
	e.cancel = nil
	e.sess = nil
	e.mu.Unlock()

	cancel()
	<-done
	e.metrics.SniperRunning.Set(0)

	log.Info().Msg("sniper: run STOPPED")
	return nil
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stats reports engine counters for the process lifetime.
type Stats struct {
	Running        bool      `json:"running"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	Detections     int64     `json:"detections"`
	BuysSubmitted  int64     `json:"buys_submitted"`
	BuysSucceeded  int64     `json:"buys_succeeded"`
	BuysFailed     int64     `json:"buys_failed"`
	SellsSubmitted int64     `json:"sells_submitted"`
	SellsSucceeded int64     `json:"sells_succeeded"`
	SellsFailed    int64     `json:"sells_failed"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	running := e.running
	startedAt := e.startedAt
	e.mu.Unlock()

	s := Stats{
		Running:        running,
		Detections:     e.detections.Load(),
		BuysSubmitted:  e.buysSubmitted.Load(),
		BuysSucceeded:  e.buysSucceeded.Load(),
		BuysFailed:     e.buysFailed.Load(),
		SellsSubmitted: e.sellsSubmitted.Load(),
		SellsSucceeded: e.sellsSucceeded.Load(),
		SellsFailed:    e.sellsFailed.Load(),
	}
	if running {
		s.StartedAt = startedAt
	}
	return s
}

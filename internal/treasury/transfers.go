package treasury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/observability"
	"github.com/volleytrade/volley/internal/solana"
	"github.com/volleytrade/volley/internal/wallet"
)

// ---------------------------------------------------------------------------
// Treasury — collect from and distribute to trading wallets
// ---------------------------------------------------------------------------

// ErrInvalidRequest wraps all request validation failures.
var ErrInvalidRequest = errors.New("treasury: invalid request")

// Request describes one fund movement for one wallet.
type Request struct {
	Wallet string `json:"wallet"`
	Token  string `json:"token"` // "SOL" or a mint address
	Amount string `json:"amount"`
}

// Service executes treasury transfers. Submissions share the engine's
// per-wallet sequencer, so a transfer never races a trade from the
// same wallet.
type Service struct {
	chain   solana.ChainClient
	wallets *wallet.Registry
	seq     *wallet.Sequencer
	book    *ledger.Book
	metrics *observability.Metrics
	timeout time.Duration
}

// NewService creates a treasury service.
func NewService(chain solana.ChainClient, wallets *wallet.Registry,
	seq *wallet.Sequencer, book *ledger.Book, metrics *observability.Metrics,
	timeout time.Duration) *Service {

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		chain:   chain,
		wallets: wallets,
		seq:     seq,
		book:    book,
		metrics: metrics,
		timeout: timeout,
	}
}

// Collect moves funds from a trading wallet to the treasury. The
// returned record is pending; it resolves asynchronously.
func (s *Service) Collect(req Request) (ledger.Record, error) {
	return s.submit(req, solana.DirectionCollect, ledger.KindCollect)
}

// Distribute moves funds from the treasury to a trading wallet.
func (s *Service) Distribute(req Request) (ledger.Record, error) {
	return s.submit(req, solana.DirectionDistribute, ledger.KindDistribute)
}

func (s *Service) submit(req Request, direction solana.TransferDirection, kind ledger.Kind) (ledger.Record, error) {
	acct, ok := s.wallets.Get(solana.Pubkey(req.Wallet))
	if !ok {
		return ledger.Record{}, fmt.Errorf("%w: wallet %q not registered", ErrInvalidRequest, req.Wallet)
	}

	if !solana.IsNativeToken(req.Token) {
		if err := solana.ValidateAddress(req.Token); err != nil {
			return ledger.Record{}, fmt.Errorf("%w: token: %v", ErrInvalidRequest, err)
		}
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: amount %q: not a number", ErrInvalidRequest, req.Amount)
	}
	if !amount.IsPositive() {
		return ledger.Record{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidRequest, amount)
	}

	rec := s.book.Append(kind, acct.Address, req.Token, amount)
	s.metrics.TransfersSubmitted.Inc()

	log.Info().
		Str("wallet", req.Wallet).
		Str("token", req.Token).
		Str("amount", amount.String()).
		Str("direction", string(direction)).
		Msg("treasury: transfer SUBMITTED")

	go s.execute(rec, acct, req.Token, amount, direction)

	return rec, nil
}

func (s *Service) execute(rec ledger.Record, acct solana.Account, token string,
	amount decimal.Decimal, direction solana.TransferDirection) {

	s.seq.Do(acct.Address, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		sig, err := s.chain.Transfer(ctx, acct, token, amount, direction)
		if err != nil {
			s.metrics.TransfersFailed.Inc()
			if lerr := s.book.MarkFailed(rec.ID, err.Error()); lerr != nil {
				log.Error().Err(lerr).Str("id", rec.ID.String()).Msg("treasury: ledger resolve failed")
			}
			log.Error().Err(err).
				Str("wallet", string(acct.Address)).
				Str("direction", string(direction)).
				Msg("treasury: transfer FAILED")
			return
		}

		if lerr := s.book.MarkSuccess(rec.ID, sig, amount); lerr != nil {
			log.Error().Err(lerr).Str("id", rec.ID.String()).Msg("treasury: ledger resolve failed")
		}

		log.Info().
			Str("wallet", string(acct.Address)).
			Str("tx", string(sig)).
			Str("direction", string(direction)).
			Msg("treasury: transfer CONFIRMED")
	})
}

package sniper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/volleytrade/volley/internal/config"
	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/solana"
)

// ---------------------------------------------------------------------------
// Trade pipeline — buy on detection, sell after the configured delay
// ---------------------------------------------------------------------------

// snipe fans a detected contract out to the trading wallets. Single
// mode sends the full budget from the first wallet; auto mode splits
// the budget evenly across all wallets.
func (e *Engine) snipe(sess *session, contract solana.Pubkey) {
	accounts := e.wallets.Accounts()
	if len(accounts) == 0 {
		log.Warn().Str("contract", string(contract)).Msg("sniper: no wallets left at detection time")
		return
	}

	budget := decimal.NewFromFloat(sess.params.MaxSolPerTrade)

	var perWallet decimal.Decimal
	if sess.params.Mode == config.ModeSingle {
		accounts = accounts[:1]
		perWallet = budget
	} else {
		perWallet = budget.Div(decimal.NewFromInt(int64(len(accounts))))
	}

	for _, acct := range accounts {
		if !sess.markEnqueued(acct.Address, contract) {
			continue
		}
		go e.executeBuy(sess, acct, contract, perWallet)
	}
}

// executeBuy submits one buy. Stop gates entry here: once the record is
// appended the call runs to a terminal status on its own timeout.
func (e *Engine) executeBuy(sess *session, acct solana.Account, contract solana.Pubkey, maxSOL decimal.Decimal) {
	if sess.ctx.Err() != nil {
		return
	}

	gasFee := decimal.NewFromFloat(sess.params.GasFee)
	rec := e.book.Append(ledger.KindBuy, acct.Address, string(contract), maxSOL)
	e.buysSubmitted.Add(1)
	e.metrics.BuysSubmitted.Inc()

	log.Info().
		Str("wallet", string(acct.Address)).
		Str("contract", string(contract)).
		Str("max_sol", maxSOL.String()).
		Msg("sniper: EXECUTING BUY")

	e.seq.Do(acct.Address, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CallTimeout)
		defer cancel()

		result, err := e.chain.Buy(ctx, acct, contract, maxSOL, gasFee)
		if err != nil {
			e.buysFailed.Add(1)
			e.metrics.BuysFailed.Inc()
			if lerr := e.book.MarkFailed(rec.ID, err.Error()); lerr != nil {
				log.Error().Err(lerr).Str("id", rec.ID.String()).Msg("sniper: ledger resolve failed")
			}
			log.Error().Err(err).
				Str("wallet", string(acct.Address)).
				Str("contract", string(contract)).
				Msg("sniper: buy FAILED")
			return
		}

		e.buysSucceeded.Add(1)
		if lerr := e.book.MarkSuccess(rec.ID, result.Signature, result.Amount); lerr != nil {
			log.Error().Err(lerr).Str("id", rec.ID.String()).Msg("sniper: ledger resolve failed")
		}

		log.Info().
			Str("wallet", string(acct.Address)).
			Str("contract", string(contract)).
			Str("filled", result.Amount.String()).
			Int64("latency_ms", result.LatencyMs).
			Msg("sniper: buy FILLED")

		// The matching sell is committed the moment the buy fills and
		// fires even if the run is stopped meanwhile.
		go e.scheduleSell(sess, acct, contract)
	})
}

// scheduleSell waits out the sell delay, then liquidates the position.
func (e *Engine) scheduleSell(sess *session, acct solana.Account, contract solana.Pubkey) {
	delay := time.Duration(sess.params.SellDelay * float64(time.Second))
	if delay > 0 {
		time.Sleep(delay)
	}

	gasFee := decimal.NewFromFloat(sess.params.GasFee)
	rec := e.book.Append(ledger.KindSell, acct.Address, string(contract), decimal.Zero)
	e.sellsSubmitted.Add(1)
	e.metrics.SellsSubmitted.Inc()

	log.Info().
		Str("wallet", string(acct.Address)).
		Str("contract", string(contract)).
		Float64("pct", sess.params.SellPercentage).
		Msg("sniper: EXECUTING SELL")

	e.seq.Do(acct.Address, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CallTimeout)
		defer cancel()

		result, err := e.chain.Sell(ctx, acct, contract, sess.params.SellPercentage, gasFee)
		if err != nil {
			e.sellsFailed.Add(1)
			e.metrics.SellsFailed.Inc()
			if lerr := e.book.MarkFailed(rec.ID, err.Error()); lerr != nil {
				log.Error().Err(lerr).Str("id", rec.ID.String()).Msg("sniper: ledger resolve failed")
			}
			log.Error().Err(err).
				Str("wallet", string(acct.Address)).
				Str("contract", string(contract)).
				Msg("sniper: sell FAILED")
			return
		}

		e.sellsSucceeded.Add(1)
		if lerr := e.book.MarkSuccess(rec.ID, result.Signature, result.Amount); lerr != nil {
			log.Error().Err(lerr).Str("id", rec.ID.String()).Msg("sniper: ledger resolve failed")
		}

		log.Info().
			Str("wallet", string(acct.Address)).
			Str("contract", string(contract)).
			Str("received", result.Amount.String()).
			Msg("sniper: position CLOSED")
	})
}

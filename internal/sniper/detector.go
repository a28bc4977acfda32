package sniper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/volleytrade/volley/internal/solana"
)

// ---------------------------------------------------------------------------
// Detector — polls the watchlist for contracts that became tradable
// ---------------------------------------------------------------------------

// runDetector scans the watchlist until the session ends. The first
// scan fires immediately so a contract that is already live gets hit
// without waiting a full poll interval.
func (e *Engine) runDetector(sess *session, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.scan(sess)

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			e.scan(sess)
		}
	}
}

// scan probes every unhandled contract. Each probe runs in its own
// goroutine so one slow RPC cannot starve the others.
func (e *Engine) scan(sess *session) {
	for _, contract := range e.watch.List() {
		if !sess.markProbing(contract) {
			continue // already handled or probe in flight
		}
		go e.probe(sess, contract)
	}
}

func (e *Engine) probe(sess *session, contract solana.Pubkey) {
	defer sess.doneProbing(contract)

	ctx, cancel := context.WithTimeout(sess.ctx, e.cfg.CallTimeout)
	defer cancel()

	tradable, err := e.chain.IsTradable(ctx, contract)
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		// Transient RPC failures retry on the next tick.
		log.Warn().Err(err).Str("contract", string(contract)).Msg("sniper: tradability check failed")
		return
	}
	if !tradable {
		return
	}

	if !sess.markHandled(contract) {
		// The probing reservation should make this unreachable.
		log.Warn().Str("contract", string(contract)).Msg("sniper: duplicate detection suppressed")
		return
	}

	e.detections.Add(1)
	e.metrics.Detections.Inc()

	log.Info().Str("contract", string(contract)).Msg("sniper: contract TRADABLE")

	go e.snipe(sess, contract)
}

package sniper

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleytrade/volley/internal/config"
	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/observability"
	"github.com/volleytrade/volley/internal/solana"
	"github.com/volleytrade/volley/internal/wallet"
	"github.com/volleytrade/volley/internal/watchlist"
)

// testRig wires an engine against the stub chain client with fast
// timing for tests.
type testRig struct {
	engine  *Engine
	chain   *solana.StubClient
	wallets *wallet.Registry
	watch   *watchlist.Watchlist
	params  *config.TradeStore
	book    *ledger.Book
}

func newRig(t *testing.T) *testRig {
	t.Helper()

	rig := &testRig{
		chain:   solana.NewStubClient(),
		wallets: wallet.NewRegistry(),
		watch:   watchlist.New(),
		params:  config.NewTradeStore(),
		book:    ledger.NewBook(nil),
	}

	p := config.DefaultTradeParams()
	p.SellDelay = 0.02
	require.NoError(t, rig.params.Save(p))

	cfg := Config{
		PollInterval: 20 * time.Millisecond,
		CallTimeout:  2 * time.Second,
	}
	rig.engine = NewEngine(cfg, rig.chain, rig.wallets, rig.watch,
		rig.params, rig.book, wallet.NewSequencer(), observability.NewMetrics())

	t.Cleanup(func() {
		if rig.engine.Running() {
			rig.engine.Stop()
		}
	})
	return rig
}

func (r *testRig) addWallet(t *testing.T) solana.Pubkey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	acct, err := r.wallets.Add(base58.Encode(pub))
	require.NoError(t, err)
	return acct.Address
}

func (r *testRig) addContract(t *testing.T) solana.Pubkey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	mint := base58.Encode(pub)
	require.NoError(t, r.watch.Add(mint))
	return solana.Pubkey(mint)
}

func TestEngine_StartRequiresWallets(t *testing.T) {
	rig := newRig(t)
	rig.addContract(t)

	assert.ErrorIs(t, rig.engine.Start(), ErrNoWallets)
	assert.False(t, rig.engine.Running())
}

func TestEngine_StartRequiresContracts(t *testing.T) {
	rig := newRig(t)
	rig.addWallet(t)

	assert.ErrorIs(t, rig.engine.Start(), ErrNoContracts)
}

func TestEngine_StartStopLifecycle(t *testing.T) {
	rig := newRig(t)
	rig.addWallet(t)
	rig.addContract(t)

	require.NoError(t, rig.engine.Start())
	assert.True(t, rig.engine.Running())

	assert.ErrorIs(t, rig.engine.Start(), ErrAlreadyRunning)

	require.NoError(t, rig.engine.Stop())
	assert.False(t, rig.engine.Running())

	assert.ErrorIs(t, rig.engine.Stop(), ErrNotRunning)
}

func TestEngine_Restart(t *testing.T) {
	rig := newRig(t)
	rig.addWallet(t)
	rig.addContract(t)

	require.NoError(t, rig.engine.Start())
	require.NoError(t, rig.engine.Stop())
	require.NoError(t, rig.engine.Start())
	assert.True(t, rig.engine.Running())
	require.NoError(t, rig.engine.Stop())
}

func TestEngine_StatsReflectRun(t *testing.T) {
	rig := newRig(t)
	rig.addWallet(t)
	contract := rig.addContract(t)
	rig.chain.SetTradable(contract, true)

	require.NoError(t, rig.engine.Start())

	assert.Eventually(t, func() bool {
		return rig.engine.Stats().BuysSucceeded == 1
	}, 3*time.Second, 10*time.Millisecond)

	s := rig.engine.Stats()
	assert.True(t, s.Running)
	assert.False(t, s.StartedAt.IsZero())
	assert.Equal(t, int64(1), s.Detections)
	assert.Equal(t, int64(1), s.BuysSubmitted)

	require.NoError(t, rig.engine.Stop())
	assert.False(t, rig.engine.Stats().Running)
}

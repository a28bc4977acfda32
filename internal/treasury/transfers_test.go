package treasury

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/observability"
	"github.com/volleytrade/volley/internal/solana"
	"github.com/volleytrade/volley/internal/wallet"
)

type rig struct {
	svc     *Service
	chain   *solana.StubClient
	wallets *wallet.Registry
	book    *ledger.Book
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		chain:   solana.NewStubClient(),
		wallets: wallet.NewRegistry(),
		book:    ledger.NewBook(nil),
	}
	r.svc = NewService(r.chain, r.wallets, wallet.NewSequencer(), r.book,
		observability.NewMetrics(), 2*time.Second)
	return r
}

func (r *rig) addWallet(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	acct, err := r.wallets.Add(base58.Encode(pub))
	require.NoError(t, err)
	return string(acct.Address)
}

func newMint(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func TestCollect_NativeToken(t *testing.T) {
	r := newRig(t)
	addr := r.addWallet(t)

	rec, err := r.svc.Collect(Request{Wallet: addr, Token: "SOL", Amount: "1.5"})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindCollect, rec.Kind)
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Equal(t, "1.5", rec.Amount.String())

	assert.Eventually(t, func() bool {
		got, _ := r.book.Get(rec.ID)
		return got.Status == ledger.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	calls := r.chain.TransferCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, solana.DirectionCollect, calls[0].Direction)
	assert.Equal(t, "SOL", calls[0].Token)
}

func TestDistribute_SPLToken(t *testing.T) {
	r := newRig(t)
	addr := r.addWallet(t)
	mint := newMint(t)

	rec, err := r.svc.Distribute(Request{Wallet: addr, Token: mint, Amount: "250"})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindDistribute, rec.Kind)

	assert.Eventually(t, func() bool {
		got, _ := r.book.Get(rec.ID)
		return got.Status == ledger.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	calls := r.chain.TransferCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, solana.DirectionDistribute, calls[0].Direction)
	assert.Equal(t, mint, calls[0].Token)
}

func TestSubmit_Validation(t *testing.T) {
	r := newRig(t)
	addr := r.addWallet(t)

	// Unknown wallet.
	_, err := r.svc.Collect(Request{Wallet: newMint(t), Token: "SOL", Amount: "1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// Bad token.
	_, err = r.svc.Collect(Request{Wallet: addr, Token: "not-a-mint", Amount: "1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// Bad amounts.
	for _, amount := range []string{"", "abc", "0", "-1"} {
		_, err = r.svc.Collect(Request{Wallet: addr, Token: "SOL", Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidRequest, "amount %q", amount)
	}

	// Nothing reached the chain or the ledger.
	assert.Empty(t, r.chain.TransferCalls())
	assert.Equal(t, 0, r.book.Len())
}

func TestTransfer_FailureResolvesFailed(t *testing.T) {
	r := newRig(t)
	addr := r.addWallet(t)
	r.chain.SetFailNext()

	rec, err := r.svc.Collect(Request{Wallet: addr, Token: "SOL", Amount: "1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, _ := r.book.Get(rec.ID)
		return got.Status == ledger.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := r.book.Get(rec.ID)
	assert.Contains(t, got.Error, "transfer rejected")
}

func TestTransfer_SameWalletSerialized(t *testing.T) {
	r := newRig(t)
	addr := r.addWallet(t)
	r.chain.SetCallDelay(10 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_, err := r.svc.Collect(Request{Wallet: addr, Token: "SOL", Amount: "0.1"})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return len(r.chain.TransferCalls()) == 5
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, r.chain.MaxInFlight(solana.Pubkey(addr)))
}

func TestTransfer_DifferentWalletsParallel(t *testing.T) {
	r := newRig(t)
	a := r.addWallet(t)
	b := r.addWallet(t)
	r.chain.SetCallDelay(50 * time.Millisecond)

	_, err := r.svc.Collect(Request{Wallet: a, Token: "SOL", Amount: "1"})
	require.NoError(t, err)
	_, err = r.svc.Collect(Request{Wallet: b, Token: "SOL", Amount: "1"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(r.chain.TransferCalls()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Serial execution would put the calls a full delay apart.
	calls := r.chain.TransferCalls()
	gap := calls[1].At.Sub(calls[0].At)
	if gap < 0 {
		gap = -gap
	}
	assert.Less(t, gap, 40*time.Millisecond, "transfers did not overlap")
}

package watchlist

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleytrade/volley/internal/solana"
)

func newMint(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func TestWatchlist_AddRemove(t *testing.T) {
	w := New()
	mint := newMint(t)

	require.NoError(t, w.Add(mint))
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Contains(solana.Pubkey(mint)))

	require.NoError(t, w.Remove(mint))
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Contains(solana.Pubkey(mint)))
}

func TestWatchlist_AddInvalid(t *testing.T) {
	w := New()
	assert.Error(t, w.Add("nope"))
	assert.Equal(t, 0, w.Len())
}

func TestWatchlist_AddDuplicate(t *testing.T) {
	w := New()
	mint := newMint(t)

	require.NoError(t, w.Add(mint))
	assert.ErrorIs(t, w.Add(mint), ErrDuplicate)
	assert.Equal(t, 1, w.Len())
}

func TestWatchlist_RemoveMissing(t *testing.T) {
	w := New()
	assert.ErrorIs(t, w.Remove(newMint(t)), ErrNotFound)
}

func TestWatchlist_ListOrder(t *testing.T) {
	w := New()

	var want []solana.Pubkey
	for i := 0; i < 4; i++ {
		mint := newMint(t)
		require.NoError(t, w.Add(mint))
		want = append(want, solana.Pubkey(mint))
	}

	assert.Equal(t, want, w.List())

	require.NoError(t, w.Remove(string(want[1])))
	assert.Equal(t, []solana.Pubkey{want[0], want[2], want[3]}, w.List())
}

func TestWatchlist_Clear(t *testing.T) {
	w := New()
	require.NoError(t, w.Add(newMint(t)))
	require.NoError(t, w.Add(newMint(t)))

	w.Clear()
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.List())
}

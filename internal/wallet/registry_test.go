package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleytrade/volley/internal/solana"
)

func newWallet(t *testing.T) (string, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub), base58.Encode(priv)
}

func TestRegistry_Add(t *testing.T) {
	r := NewRegistry()
	addr, _ := newWallet(t)

	acct, err := r.Add(addr)
	require.NoError(t, err)
	assert.Equal(t, solana.Pubkey(addr), acct.Address)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(solana.Pubkey(addr))
	assert.True(t, ok)
	assert.Equal(t, acct, got)
}

func TestRegistry_AddInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.Add("not-an-address")
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := NewRegistry()
	addr, _ := newWallet(t)

	_, err := r.Add(addr)
	require.NoError(t, err)

	_, err = r.Add(addr)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_AddKey(t *testing.T) {
	r := NewRegistry()
	addr, key := newWallet(t)

	acct, err := r.AddKey(key)
	require.NoError(t, err)
	assert.Equal(t, solana.Pubkey(addr), acct.Address)
	assert.Equal(t, key, acct.SigningKey)

	// Same wallet by address is still a duplicate.
	_, err = r.Add(addr)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	addr, _ := newWallet(t)

	_, err := r.Add(addr)
	require.NoError(t, err)

	require.NoError(t, r.Remove(addr))
	assert.Equal(t, 0, r.Len())

	assert.ErrorIs(t, r.Remove(addr), ErrNotFound)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		addr, _ := newWallet(t)
		_, err := r.Add(addr)
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.Len())

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Addresses())
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := NewRegistry()

	var want []solana.Pubkey
	for i := 0; i < 5; i++ {
		addr, _ := newWallet(t)
		_, err := r.Add(addr)
		require.NoError(t, err)
		want = append(want, solana.Pubkey(addr))
	}

	assert.Equal(t, want, r.Addresses())

	accounts := r.Accounts()
	require.Len(t, accounts, 5)
	for i, acct := range accounts {
		assert.Equal(t, want[i], acct.Address)
	}

	// Removal keeps relative order of the rest.
	require.NoError(t, r.Remove(string(want[2])))
	assert.Equal(t, []solana.Pubkey{want[0], want[1], want[3], want[4]}, r.Addresses())
}

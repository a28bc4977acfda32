package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, rpc, signer http.HandlerFunc) *LiveClient {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Timeout = 5 * time.Second
	if rpc != nil {
		server := httptest.NewServer(rpc)
		t.Cleanup(server.Close)
		cfg.RPCEndpoint = server.URL
	}
	if signer != nil {
		server := httptest.NewServer(signer)
		t.Cleanup(server.Close)
		cfg.SignerEndpoint = server.URL
	}
	return NewLiveClient(cfg)
}

func rpcResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  result,
	})
}

func TestLiveClient_Health(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(w, "ok")
	}, nil)

	err := client.Health(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), client.Stats().RequestCount)
}

func TestLiveClient_Health_RPCError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32600, "message": "Invalid request"},
		})
	}, nil)

	err := client.Health(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid request")
}

func curveAccountData(complete bool) string {
	data := make([]byte, 8+5*8+1)
	if complete {
		data[8+5*8] = 1
	}
	return base64.StdEncoding.EncodeToString(data)
}

func TestLiveClient_IsTradable_CurveLive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(w, map[string]any{
			"value": map[string]any{
				"data": []string{curveAccountData(false), "base64"},
			},
		})
	}, nil)

	mint, _ := generateWallet(t)
	tradable, err := client.IsTradable(context.Background(), Pubkey(mint))
	require.NoError(t, err)
	assert.True(t, tradable)
}

func TestLiveClient_IsTradable_CurveComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(w, map[string]any{
			"value": map[string]any{
				"data": []string{curveAccountData(true), "base64"},
			},
		})
	}, nil)

	mint, _ := generateWallet(t)
	tradable, err := client.IsTradable(context.Background(), Pubkey(mint))
	require.NoError(t, err)
	assert.False(t, tradable)
}

func TestLiveClient_IsTradable_NoAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(w, map[string]any{"value": nil})
	}, nil)

	mint, _ := generateWallet(t)
	tradable, err := client.IsTradable(context.Background(), Pubkey(mint))
	require.NoError(t, err)
	assert.False(t, tradable)
}

func TestLiveClient_Buy(t *testing.T) {
	var got tradeRequest
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(signerResponse{
			Signature: "live-sig-1",
			OutAmount: "125000",
		})
	})

	addr, _ := generateWallet(t)
	mint, _ := generateWallet(t)
	wallet := Account{Address: Pubkey(addr), SigningKey: "handle-1"}

	result, err := client.Buy(context.Background(), wallet, Pubkey(mint),
		decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.001))
	require.NoError(t, err)

	assert.Equal(t, Signature("live-sig-1"), result.Signature)
	assert.Equal(t, "125000", result.Amount.String())
	assert.Equal(t, "buy", got.Action)
	assert.Equal(t, mint, got.Mint)
	assert.Equal(t, addr, got.PublicKey)
	assert.Equal(t, "0.5", got.AmountSOL)
}

func TestLiveClient_Sell(t *testing.T) {
	var got tradeRequest
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(signerResponse{
			Signature: "live-sig-2",
			OutAmount: "0.47",
		})
	})

	addr, _ := generateWallet(t)
	mint, _ := generateWallet(t)
	wallet := Account{Address: Pubkey(addr)}

	result, err := client.Sell(context.Background(), wallet, Pubkey(mint), 100, decimal.NewFromFloat(0.001))
	require.NoError(t, err)

	assert.Equal(t, Signature("live-sig-2"), result.Signature)
	assert.Equal(t, "sell", got.Action)
	assert.Equal(t, float64(100), got.Percentage)
}

func TestLiveClient_Transfer(t *testing.T) {
	var got transferRequest
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfer", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(signerResponse{Signature: "live-sig-3"})
	})

	addr, _ := generateWallet(t)
	wallet := Account{Address: Pubkey(addr)}

	sig, err := client.Transfer(context.Background(), wallet, NativeMarker,
		decimal.NewFromFloat(1.5), DirectionCollect)
	require.NoError(t, err)

	assert.Equal(t, Signature("live-sig-3"), sig)
	assert.Equal(t, "SOL", got.Token)
	assert.Equal(t, "collect", got.Direction)
	assert.Equal(t, "1.5", got.Amount)
}

func TestLiveClient_SignerError(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(signerResponse{Error: "insufficient balance"})
	})

	addr, _ := generateWallet(t)
	mint, _ := generateWallet(t)
	wallet := Account{Address: Pubkey(addr)}

	_, err := client.Buy(context.Background(), wallet, Pubkey(mint),
		decimal.NewFromFloat(0.5), decimal.Zero)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func buildCreateEventLog(t *testing.T, mint string) string {
	t.Helper()
	raw, err := base58.Decode(mint)
	require.NoError(t, err)

	buf := make([]byte, 8) // discriminator
	for _, s := range []string{"Test Token", "TST", "https://example.com/meta.json"} {
		lenBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBytes, uint32(len(s)))
		buf = append(buf, lenBytes...)
		buf = append(buf, s...)
	}
	buf = append(buf, raw...)

	return "Program data: " + base64.StdEncoding.EncodeToString(buf)
}

func TestParseCreateEvent(t *testing.T) {
	mint, _ := generateWallet(t)

	logs := []string{
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
		"Program log: Instruction: Create",
		buildCreateEventLog(t, mint),
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P success",
	}

	got, ok := parseCreateEvent(logs)
	require.True(t, ok)
	assert.Equal(t, Pubkey(mint), got)
}

func TestParseCreateEvent_NoEventData(t *testing.T) {
	_, ok := parseCreateEvent([]string{
		"Program log: Instruction: Buy",
		"Program data: " + base64.StdEncoding.EncodeToString([]byte("short")),
	})
	assert.False(t, ok)
}

func TestParseCreateEvent_GarbageData(t *testing.T) {
	_, ok := parseCreateEvent([]string{"Program data: !!!not-base64!!!"})
	assert.False(t, ok)
}

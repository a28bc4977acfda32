package solana

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Chain Client Interface
// ---------------------------------------------------------------------------

// ChainClient is the capability the engine calls into for everything
// on-chain. Implementations: LiveClient (real Solana + signer service),
// StubClient (testing).
type ChainClient interface {
	// IsTradable reports whether the contract's pool is live and the
	// token can currently be bought.
	IsTradable(ctx context.Context, contract Pubkey) (bool, error)

	// Buy spends up to maxSOL from the wallet on the contract's token.
	// The returned amount is the actual filled token amount.
	Buy(ctx context.Context, wallet Account, contract Pubkey, maxSOL, gasFee decimal.Decimal) (TradeResult, error)

	// Sell liquidates percentage (0-100] of the wallet's position in the
	// contract's token. The returned amount is the SOL received.
	Sell(ctx context.Context, wallet Account, contract Pubkey, percentage float64, gasFee decimal.Decimal) (TradeResult, error)

	// Transfer moves amount of token between the wallet and the treasury,
	// in the given direction. Token is NativeMarker or a mint address.
	Transfer(ctx context.Context, wallet Account, token string, amount decimal.Decimal, direction TransferDirection) (Signature, error)

	// Health checks the chain endpoint.
	Health(ctx context.Context) error
}

// ClientConfig configures the live chain client.
type ClientConfig struct {
	RPCEndpoint      string        `yaml:"rpc_endpoint"`       // e.g. https://api.mainnet-beta.solana.com
	WSEndpoint       string        `yaml:"ws_endpoint"`        // e.g. wss://api.mainnet-beta.solana.com
	SignerEndpoint   string        `yaml:"signer_endpoint"`    // trade/transfer execution sidecar
	Timeout          time.Duration `yaml:"timeout"`            // per-call bound
	ReconnectDelayMs int           `yaml:"reconnect_delay_ms"` // ws reconnect backoff base
	PingIntervalS    int           `yaml:"ping_interval_s"`
	SlippagePct      float64       `yaml:"slippage_pct"`
}

// DefaultClientConfig returns mainnet defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RPCEndpoint:      "https://api.mainnet-beta.solana.com",
		WSEndpoint:       "wss://api.mainnet-beta.solana.com",
		SignerEndpoint:   "http://localhost:8899",
		Timeout:          10 * time.Second,
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
		SlippagePct:      5,
	}
}

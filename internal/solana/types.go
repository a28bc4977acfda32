package solana

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pubkey is a Solana public key (base58 string).
type Pubkey string

// Signature is a Solana transaction signature.
type Signature string

// NativeMarker is the literal token symbol operators use to move SOL
// itself instead of an SPL token.
const NativeMarker = "SOL"

// Account pairs a wallet address with the opaque handle the signer
// service uses to locate its key material. The engine never sees raw
// private keys.
type Account struct {
	Address    Pubkey `json:"address"`
	SigningKey string `json:"-"`
}

// TradeResult is the outcome of an executed buy or sell.
type TradeResult struct {
	Signature Signature       `json:"signature"`
	Amount    decimal.Decimal `json:"amount"` // actual filled amount, not requested
	LatencyMs int64           `json:"latency_ms"`
}

// TransferDirection distinguishes treasury transfers.
type TransferDirection string

const (
	DirectionCollect    TransferDirection = "collect"    // wallet -> treasury
	DirectionDistribute TransferDirection = "distribute" // treasury -> wallet
)

// TradableEvent is emitted by the live client's websocket feed when a
// watched mint's pool goes live.
type TradableEvent struct {
	Mint       Pubkey    `json:"mint"`
	Signature  Signature `json:"signature"`
	DetectedAt time.Time `json:"detected_at"`
}

// Well-known program IDs.
const (
	TokenProgramID   = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	PumpFunProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

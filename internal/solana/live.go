package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Live Chain Client — real Solana JSON-RPC + websocket mint feed + signer
// sidecar for transaction building/signing/submission
// ---------------------------------------------------------------------------

// LiveClient talks to a real Solana RPC endpoint for reads, keeps a
// logsSubscribe websocket open to spot pump.fun token creations, and
// delegates buy/sell/transfer execution to the signer service.
type LiveClient struct {
	cfg        ClientConfig
	httpClient *http.Client

	nextID atomic.Int64

	mu       sync.RWMutex
	conn     *websocket.Conn
	tradable map[Pubkey]time.Time // mints seen live on the ws feed

	events chan TradableEvent
	closed atomic.Bool

	cancel context.CancelFunc

	// Stats.
	requestCount  atomic.Int64
	errorCount    atomic.Int64
	messagesRecv  atomic.Int64
	mintsDetected atomic.Int64
	reconnects    atomic.Int64
	connected     atomic.Bool
}

// NewLiveClient creates a live chain client. Call Start to open the
// websocket feed.
func NewLiveClient(cfg ClientConfig) *LiveClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReconnectDelayMs == 0 {
		cfg.ReconnectDelayMs = 1000
	}
	return &LiveClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tradable:   make(map[Pubkey]time.Time),
		events:     make(chan TradableEvent, 256),
	}
}

// Start launches the websocket feed. The returned channel emits an
// event per newly tradable mint; it closes when the feed shuts down.
func (c *LiveClient) Start(ctx context.Context) <-chan TradableEvent {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.runLoop(ctx)
	return c.events
}

// Close shuts the websocket feed down.
func (c *LiveClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// ---------------------------------------------------------------------------
// JSON-RPC
// ---------------------------------------------------------------------------

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call makes one JSON-RPC call against the configured endpoint.
func (c *LiveClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.RPCEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.errorCount.Add(1)
		return nil, fmt.Errorf("rpc: %s http error: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.errorCount.Add(1)
		return nil, fmt.Errorf("rpc: %s read response: %w", method, err)
	}

	c.requestCount.Add(1)

	if resp.StatusCode != 200 {
		c.errorCount.Add(1)
		return nil, fmt.Errorf("rpc: %s HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.errorCount.Add(1)
		return nil, fmt.Errorf("rpc: %s unmarshal response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc: %s error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// ---------------------------------------------------------------------------
// ChainClient implementation
// ---------------------------------------------------------------------------

// IsTradable answers from the websocket feed cache first, then falls
// back to reading the mint's bonding curve account on-chain. A mint is
// tradable when its curve account exists and the curve is not complete
// (completed curves have migrated to a DEX and left the launch window).
func (c *LiveClient) IsTradable(ctx context.Context, contract Pubkey) (bool, error) {
	c.mu.RLock()
	_, seen := c.tradable[contract]
	c.mu.RUnlock()
	if seen {
		return true, nil
	}

	curve, err := BondingCurveAddress(contract)
	if err != nil {
		return false, err
	}

	result, err := c.call(ctx, "getAccountInfo", []any{
		string(curve),
		map[string]any{"encoding": "base64"},
	})
	if err != nil {
		return false, err
	}

	var accountResp struct {
		Value *struct {
			Data []string `json:"data"` // [base64_data, "base64"]
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &accountResp); err != nil {
		return false, fmt.Errorf("rpc: parse account info: %w", err)
	}
	if accountResp.Value == nil || len(accountResp.Value.Data) == 0 {
		return false, nil
	}

	raw, err := base64.StdEncoding.DecodeString(accountResp.Value.Data[0])
	if err != nil {
		return false, fmt.Errorf("rpc: decode curve account: %w", err)
	}
	return !bondingCurveComplete(raw), nil
}

// bondingCurveComplete reads the complete flag from a pump.fun bonding
// curve account. Layout: 8-byte discriminator, five u64 reserve fields,
// then the bool at offset 48.
func bondingCurveComplete(data []byte) bool {
	const completeOffset = 8 + 5*8
	if len(data) <= completeOffset {
		return false
	}
	return data[completeOffset] != 0
}

// tradeRequest is the payload sent to the signer service.
type tradeRequest struct {
	Action      string  `json:"action"` // "buy" | "sell"
	Mint        string  `json:"mint"`
	PublicKey   string  `json:"public_key"`
	SigningKey  string  `json:"signing_key,omitempty"`
	AmountSOL   string  `json:"amount_sol,omitempty"`
	Percentage  float64 `json:"percentage,omitempty"`
	SlippagePct float64 `json:"slippage_pct"`
	PriorityFee string  `json:"priority_fee"`
}

type transferRequest struct {
	PublicKey  string `json:"public_key"`
	SigningKey string `json:"signing_key,omitempty"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Direction  string `json:"direction"`
}

type signerResponse struct {
	Signature string `json:"signature"`
	OutAmount string `json:"out_amount"`
	Error     string `json:"error,omitempty"`
}

// signerPost sends one request to the signer service.
func (c *LiveClient) signerPost(ctx context.Context, path string, payload any) (signerResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return signerResponse{}, fmt.Errorf("signer: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.SignerEndpoint+path, bytes.NewReader(body))
	if err != nil {
		return signerResponse{}, fmt.Errorf("signer: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return signerResponse{}, fmt.Errorf("signer: http error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return signerResponse{}, fmt.Errorf("signer: read response: %w", err)
	}
	if resp.StatusCode != 200 {
		return signerResponse{}, fmt.Errorf("signer: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var sr signerResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return signerResponse{}, fmt.Errorf("signer: unmarshal response: %w", err)
	}
	if sr.Error != "" {
		return signerResponse{}, fmt.Errorf("signer: %s", sr.Error)
	}
	return sr, nil
}

func (c *LiveClient) Buy(ctx context.Context, wallet Account, contract Pubkey, maxSOL, gasFee decimal.Decimal) (TradeResult, error) {
	start := time.Now()
	sr, err := c.signerPost(ctx, "/trade", tradeRequest{
		Action:      "buy",
		Mint:        string(contract),
		PublicKey:   string(wallet.Address),
		SigningKey:  wallet.SigningKey,
		AmountSOL:   maxSOL.String(),
		SlippagePct: c.cfg.SlippagePct,
		PriorityFee: gasFee.String(),
	})
	if err != nil {
		return TradeResult{}, err
	}

	filled, err := decimal.NewFromString(sr.OutAmount)
	if err != nil {
		filled = decimal.Zero
	}
	return TradeResult{
		Signature: Signature(sr.Signature),
		Amount:    filled,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *LiveClient) Sell(ctx context.Context, wallet Account, contract Pubkey, percentage float64, gasFee decimal.Decimal) (TradeResult, error) {
	start := time.Now()
	sr, err := c.signerPost(ctx, "/trade", tradeRequest{
		Action:      "sell",
		Mint:        string(contract),
		PublicKey:   string(wallet.Address),
		SigningKey:  wallet.SigningKey,
		Percentage:  percentage,
		SlippagePct: c.cfg.SlippagePct,
		PriorityFee: gasFee.String(),
	})
	if err != nil {
		return TradeResult{}, err
	}

	received, err := decimal.NewFromString(sr.OutAmount)
	if err != nil {
		received = decimal.Zero
	}
	return TradeResult{
		Signature: Signature(sr.Signature),
		Amount:    received,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *LiveClient) Transfer(ctx context.Context, wallet Account, token string, amount decimal.Decimal, direction TransferDirection) (Signature, error) {
	sr, err := c.signerPost(ctx, "/transfer", transferRequest{
		PublicKey:  string(wallet.Address),
		SigningKey: wallet.SigningKey,
		Token:      token,
		Amount:     amount.String(),
		Direction:  string(direction),
	})
	if err != nil {
		return "", err
	}
	return Signature(sr.Signature), nil
}

// Health checks the RPC endpoint.
func (c *LiveClient) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.call(healthCtx, "getHealth", nil)
	return err
}

// ---------------------------------------------------------------------------
// Websocket mint feed
// ---------------------------------------------------------------------------

func (c *LiveClient) runLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ws: runLoop panic recovered")
		}
		c.mu.Lock()
		if c.closed.CompareAndSwap(false, true) {
			close(c.events)
		}
		c.mu.Unlock()
	}()

	reconnectDelay := time.Duration(c.cfg.ReconnectDelayMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			c.disconnect()
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			log.Warn().Err(err).Msg("ws: connection failed")
			c.reconnects.Add(1)

			maxDelay := 30 * time.Second
			select {
			case <-time.After(reconnectDelay):
				reconnectDelay = reconnectDelay * 2
				if reconnectDelay > maxDelay {
					reconnectDelay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		reconnectDelay = time.Duration(c.cfg.ReconnectDelayMs) * time.Millisecond

		if err := c.subscribe(); err != nil {
			log.Warn().Err(err).Msg("ws: subscribe failed")
		}

		c.readLoop(ctx)
	}
}

func (c *LiveClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSEndpoint, http.Header{})
	if err != nil {
		return fmt.Errorf("ws: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)

	log.Info().Str("endpoint", c.cfg.WSEndpoint).Msg("ws: connected")
	return nil
}

func (c *LiveClient) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)
}

// subscribe sends a logsSubscribe for the pump.fun program.
func (c *LiveClient) subscribe() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("ws: not connected")
	}

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{PumpFunProgramID}},
			map[string]any{"commitment": "confirmed"},
		},
	}

	c.mu.Lock()
	err := c.conn.WriteJSON(req)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("ws: write subscribe: %w", err)
	}

	log.Info().Msg("ws: subscribed to launch program logs")
	return nil
}

func (c *LiveClient) readLoop(ctx context.Context) {
	pingInterval := time.Duration(c.cfg.PingIntervalS) * time.Second
	if pingInterval == 0 {
		pingInterval = 30 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Debug().Err(err).Msg("ws: ping failed")
					return
				}
			}
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("ws: connection closed normally")
			} else {
				log.Warn().Err(err).Msg("ws: read error, reconnecting")
			}
			c.connected.Store(false)
			return
		}

		c.messagesRecv.Add(1)
		c.handleMessage(message)
	}
}

func (c *LiveClient) handleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ws: handleMessage panic recovered")
		}
	}()

	var notification struct {
		Method string `json:"method"`
		Params struct {
			Result struct {
				Value struct {
					Signature string   `json:"signature"`
					Logs      []string `json:"logs"`
				} `json:"value"`
			} `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(data, &notification); err != nil {
		return
	}
	if notification.Method != "logsNotification" {
		var subResp struct {
			Result int `json:"result"`
		}
		if json.Unmarshal(data, &subResp) == nil && subResp.Result > 0 {
			log.Debug().Int("sub_id", subResp.Result).Msg("ws: subscription confirmed")
		}
		return
	}

	logs := notification.Params.Result.Value.Logs
	sig := notification.Params.Result.Value.Signature

	mint, ok := parseCreateEvent(logs)
	if !ok {
		return
	}

	c.mu.Lock()
	_, dup := c.tradable[mint]
	if !dup {
		c.tradable[mint] = time.Now()
	}
	c.mu.Unlock()
	if dup {
		return
	}

	c.mintsDetected.Add(1)

	event := TradableEvent{
		Mint:       mint,
		Signature:  Signature(sig),
		DetectedAt: time.Now(),
	}

	c.mu.RLock()
	if !c.closed.Load() {
		select {
		case c.events <- event:
			log.Info().Str("mint", string(mint)).Msg("ws: NEW TOKEN DETECTED")
		default:
			log.Warn().Msg("ws: event channel full, dropping event")
		}
	}
	c.mu.RUnlock()
}

// parseCreateEvent extracts the mint from a pump.fun create event log.
// The event is emitted as base64 on a "Program data:" line: an 8-byte
// discriminator, three length-prefixed strings (name, symbol, uri),
// then the 32-byte mint.
func parseCreateEvent(logs []string) (Pubkey, bool) {
	const prefix = "Program data: "
	for _, l := range logs {
		if !strings.HasPrefix(l, prefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(l, prefix))
		if err != nil {
			continue
		}
		if mint, ok := decodeCreateEvent(raw); ok {
			return mint, true
		}
	}
	return "", false
}

func decodeCreateEvent(raw []byte) (Pubkey, bool) {
	offset := 8 // discriminator
	for i := 0; i < 3; i++ { // name, symbol, uri
		if offset+4 > len(raw) {
			return "", false
		}
		strLen := int(binary.LittleEndian.Uint32(raw[offset:]))
		offset += 4 + strLen
		if strLen < 0 || offset > len(raw) {
			return "", false
		}
	}
	if offset+32 > len(raw) {
		return "", false
	}
	addr := Pubkey(base58.Encode(raw[offset : offset+32]))
	if ValidateAddress(string(addr)) != nil {
		return "", false
	}
	return addr, true
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// LiveStats reports client counters.
type LiveStats struct {
	Connected     bool  `json:"connected"`
	RequestCount  int64 `json:"request_count"`
	ErrorCount    int64 `json:"error_count"`
	MessagesRecv  int64 `json:"messages_recv"`
	MintsDetected int64 `json:"mints_detected"`
	Reconnects    int64 `json:"reconnects"`
}

func (c *LiveClient) Stats() LiveStats {
	return LiveStats{
		Connected:     c.connected.Load(),
		RequestCount:  c.requestCount.Load(),
		ErrorCount:    c.errorCount.Load(),
		MessagesRecv:  c.messagesRecv.Load(),
		MintsDetected: c.mintsDetected.Load(),
		Reconnects:    c.reconnects.Load(),
	}
}

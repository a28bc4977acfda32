package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/volleytrade/volley/internal/config"
	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/observability"
	"github.com/volleytrade/volley/internal/sniper"
	"github.com/volleytrade/volley/internal/treasury"
	"github.com/volleytrade/volley/internal/wallet"
	"github.com/volleytrade/volley/internal/watchlist"
)

// ---------------------------------------------------------------------------
// Control API — HTTP surface for the operator UI
// ---------------------------------------------------------------------------

// Server exposes the engine, stores and treasury over HTTP.
type Server struct {
	engine   *sniper.Engine
	wallets  *wallet.Registry
	watch    *watchlist.Watchlist
	params   *config.TradeStore
	book     *ledger.Book
	treasury *treasury.Service
	health   *observability.HealthMonitor
	metrics  *observability.Metrics
}

// NewServer creates the API server.
func NewServer(engine *sniper.Engine, wallets *wallet.Registry,
	watch *watchlist.Watchlist, params *config.TradeStore, book *ledger.Book,
	treasury *treasury.Service, health *observability.HealthMonitor,
	metrics *observability.Metrics) *Server {

	return &Server{
		engine:   engine,
		wallets:  wallets,
		watch:    watch,
		params:   params,
		book:     book,
		treasury: treasury,
		health:   health,
		metrics:  metrics,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sniper/status", s.handleSniperStatus)
	mux.HandleFunc("/api/sniper/start", s.handleSniperStart)
	mux.HandleFunc("/api/sniper/stop", s.handleSniperStop)

	mux.HandleFunc("/api/wallets", s.handleWalletsList)
	mux.HandleFunc("/api/wallets/add", s.handleWalletsAdd)
	mux.HandleFunc("/api/wallets/delete", s.handleWalletsDelete)
	mux.HandleFunc("/api/wallets/clear", s.handleWalletsClear)

	mux.HandleFunc("/api/contracts", s.handleContractsList)
	mux.HandleFunc("/api/contracts/add", s.handleContractsAdd)
	mux.HandleFunc("/api/contracts/delete", s.handleContractsDelete)
	mux.HandleFunc("/api/contracts/clear", s.handleContractsClear)

	mux.HandleFunc("/api/config", s.handleConfig)

	mux.HandleFunc("/api/funds/collect", s.handleCollect)
	mux.HandleFunc("/api/funds/distribute", s.handleDistribute)

	mux.HandleFunc("/api/transactions", s.handleTransactions)

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observability.NewPrometheusExporter(s.metrics.Registry))

	return mux
}

// --- envelope helpers ---

func writeSuccess(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"status": "success"}
	for k, v := range fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": msg,
	})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// --- sniper ---

func (s *Server) handleSniperStatus(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{
		"is_running": s.engine.Running(),
		"stats":      s.engine.Stats(),
	})
}

func (s *Server) handleSniperStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	// An optional body updates the trade parameters before the run.
	if r.Body != nil && r.ContentLength != 0 {
		var p config.TradeParams
		if !decodeBody(w, r, &p) {
			return
		}
		if err := s.params.Save(p); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.engine.Start(); err != nil {
		switch {
		case errors.Is(err, sniper.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeSuccess(w, map[string]any{"is_running": true})
}

func (s *Server) handleSniperStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.engine.Stop(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeSuccess(w, map[string]any{"is_running": false})
}

// --- wallets ---

func (s *Server) handleWalletsList(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{"wallets": s.wallets.Addresses()})
}

func (s *Server) handleWalletsAdd(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Address    string `json:"address"`
		PrivateKey string `json:"private_key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var acct any
	var err error
	switch {
	case req.PrivateKey != "":
		acct, err = s.wallets.AddKey(req.PrivateKey)
	case req.Address != "":
		acct, err = s.wallets.Add(req.Address)
	default:
		writeError(w, http.StatusBadRequest, "address or private_key required")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.metrics.WalletsRegistered.Set(float64(s.wallets.Len()))
	writeSuccess(w, map[string]any{"wallet": acct})
}

func (s *Server) handleWalletsDelete(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.wallets.Remove(req.Address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.WalletsRegistered.Set(float64(s.wallets.Len()))
	writeSuccess(w, nil)
}

func (s *Server) handleWalletsClear(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.wallets.Clear()
	s.metrics.WalletsRegistered.Set(0)
	writeSuccess(w, nil)
}

// --- contracts ---

func (s *Server) handleContractsList(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{"contracts": s.watch.List()})
}

func (s *Server) handleContractsAdd(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.watch.Add(req.Address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.WatchedContracts.Set(float64(s.watch.Len()))
	writeSuccess(w, nil)
}

func (s *Server) handleContractsDelete(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.watch.Remove(req.Address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.WatchedContracts.Set(float64(s.watch.Len()))
	writeSuccess(w, nil)
}

func (s *Server) handleContractsClear(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.watch.Clear()
	s.metrics.WatchedContracts.Set(0)
	writeSuccess(w, nil)
}

// --- config ---

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeSuccess(w, map[string]any{"config": s.params.Load()})
	case http.MethodPost:
		var p config.TradeParams
		if !decodeBody(w, r, &p) {
			return
		}
		if err := s.params.Save(p); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeSuccess(w, map[string]any{"config": p})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// --- funds ---

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, s.treasury.Collect)
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, s.treasury.Distribute)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request,
	submit func(treasury.Request) (ledger.Record, error)) {

	if !requirePost(w, r) {
		return
	}
	var req treasury.Request
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := submit(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeSuccess(w, map[string]any{"transaction": rec})
}

// --- transactions ---

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeSuccess(w, map[string]any{
		"transactions": s.book.Recent(limit),
		"stats":        s.book.Stats(),
	})
}

// --- health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if health.Status != observability.StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Error().Err(err).Msg("api: encode health response")
	}
}

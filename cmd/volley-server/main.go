package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/volleytrade/volley/internal/api"
	"github.com/volleytrade/volley/internal/config"
	"github.com/volleytrade/volley/internal/ledger"
	"github.com/volleytrade/volley/internal/observability"
	"github.com/volleytrade/volley/internal/sniper"
	"github.com/volleytrade/volley/internal/solana"
	"github.com/volleytrade/volley/internal/treasury"
	"github.com/volleytrade/volley/internal/wallet"
	"github.com/volleytrade/volley/internal/watchlist"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "", "Path to configuration file (defaults apply if empty)")
	stubMode := flag.Bool("stub", false, "Use stub chain client (no real Solana connection)")
	flag.Parse()

	// 2. Load configuration.
	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// 3. Setup logging.
	setupLogging(cfg.General)

	log.Info().Msg("=============================================")
	log.Info().Msg("VOLLEY Multi-Wallet Sniper - Starting")
	log.Info().Msg("DETECT -> BUY -> HOLD -> SELL")
	log.Info().Msg("=============================================")

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Bool("stub_mode", *stubMode).
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("rpc_endpoint", cfg.Solana.RPCEndpoint).
		Int("poll_interval_ms", cfg.Solana.PollIntervalMs).
		Bool("postgres_ledger", cfg.Postgres.DSN != "").
		Msg("Configuration loaded")

	// 4. Create chain client.
	var chain solana.ChainClient
	var liveClient *solana.LiveClient
	if *stubMode {
		chain = solana.NewStubClient()
		log.Info().Msg("Chain client: STUB mode")
	} else {
		liveClient = solana.NewLiveClient(solana.ClientConfig{
			RPCEndpoint:      cfg.Solana.RPCEndpoint,
			WSEndpoint:       cfg.Solana.WSEndpoint,
			SignerEndpoint:   cfg.Solana.SignerEndpoint,
			Timeout:          time.Duration(cfg.Solana.TimeoutS) * time.Second,
			ReconnectDelayMs: cfg.Solana.ReconnectDelayMs,
			PingIntervalS:    cfg.Solana.PingIntervalS,
			SlippagePct:      cfg.Solana.SlippagePct,
		})
		chain = liveClient
		defer liveClient.Close()

		// Verify RPC connectivity.
		healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := chain.Health(healthCtx); err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.Solana.RPCEndpoint).
				Msg("Solana RPC health check failed (continuing, may be rate-limited)")
		} else {
			log.Info().Str("endpoint", cfg.Solana.RPCEndpoint).Msg("Chain client: LIVE - connected")
		}
		healthCancel()
	}

	// 5. Create stores.
	wallets := wallet.NewRegistry()
	watch := watchlist.New()
	params := config.NewTradeStore()
	seq := wallet.NewSequencer()

	// 6. Create the transaction ledger, with the durable sink when
	// Postgres is configured.
	var sink ledger.Sink
	if cfg.Postgres.DSN != "" {
		pgCtx, pgCancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := ledger.NewPostgresSink(pgCtx, cfg.Postgres.DSN)
		pgCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Postgres ledger sink initialization failed")
		}
		sink = pg
		defer pg.Close()
		log.Info().Msg("Ledger: Postgres sink attached")
	}
	book := ledger.NewBook(sink)

	// 7. Observability.
	metrics := observability.NewMetrics()
	health := observability.NewHealthMonitor()
	health.Register("chain", chain.Health)

	// 8. Create the sniper engine and treasury.
	engine := sniper.NewEngine(sniper.Config{
		PollInterval: time.Duration(cfg.Solana.PollIntervalMs) * time.Millisecond,
		CallTimeout:  time.Duration(cfg.Solana.TimeoutS) * time.Second,
	}, chain, wallets, watch, params, book, seq, metrics)

	treasurySvc := treasury.NewService(chain, wallets, seq, book, metrics,
		time.Duration(cfg.Solana.TimeoutS)*time.Second)

	// 9. Shutdown context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// 10. Start the live mint feed. New pump.fun mints land on the
	// watchlist, where the engine's detector picks them up on its next
	// poll if a run is active.
	if liveClient != nil {
		events := liveClient.Start(ctx)
		go func() {
			for ev := range events {
				if err := watch.Add(string(ev.Mint)); err != nil {
					log.Debug().Err(err).Str("mint", string(ev.Mint)).Msg("feed: mint not added")
					continue
				}
				metrics.WatchedContracts.Set(float64(watch.Len()))
				log.Info().
					Str("mint", string(ev.Mint)).
					Str("signature", string(ev.Signature)).
					Msg("feed: mint added to watchlist")
			}
		}()
	}

	// 11. Start the control API.
	apiServer := api.NewServer(engine, wallets, watch, params, book, treasurySvc, health, metrics)
	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("Control API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	// 12. Block until shutdown.
	<-ctx.Done()

	if engine.Running() {
		if err := engine.Stop(); err != nil {
			log.Error().Err(err).Msg("Engine stop failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("VOLLEY Multi-Wallet Sniper - Shutdown complete")
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", "volley-server").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().Timestamp().Str("service", "volley-server").
			Str("instance", general.InstanceID).Logger()
	}
}

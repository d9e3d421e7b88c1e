// Polymarket Market Maker — a single-market automated market maker for a
// binary prediction market, quoting both outcome tokens off one shared
// mutex-guarded state container.
//
// Architecture:
//
//	main.go             — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go    — orchestrator: wires the five core tasks plus the scanner, owns the queues
//	feed/market.go      — normalizes book/price_change WS events into the market queue
//	feed/user.go        — reconciles fill/order WS events straight into shared state
//	strategy/strategy.go — edge-based quoting: widen off best bid/ask, requote on bucket change
//	executor/executor.go — the sole writer to the exchange: places, cancels, splits, merges
//	monitor/monitor.go  — periodic read-only snapshot logging
//	scanner/scanner.go  — independent negative-risk arbitrage scan, shares no state with the core
//	market/book.go      — local order book mirror fed by WebSocket snapshots + price changes
//	exchange/client.go  — REST client for Polymarket CLOB API (place/cancel orders, fetch book)
//	exchange/auth.go    — L1 (EIP-712) and L2 (HMAC) authentication for the Polymarket API
//	exchange/ws.go      — WebSocket feeds (market data + user fills/orders) with auto-reconnect
//	exchange/splitmerge.go — Safe-relayer split/merge collateral adapter
//	state/state.go      — the single shared, mutex-guarded container every task reads and mutates
//
// How it makes money:
//
//	The bot captures the bid-ask spread on a binary prediction market by
//	quoting a sell of YES above mid and a sell of the NO-side exposure below
//	mid (algebraically a buy of YES). When both sides fill it earns the
//	spread, and on shutdown it merges any matched YES+NO pair back into
//	collateral.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"polymm/internal/api"
	"polymm/internal/config"
	"polymm/internal/engine"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BOT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Create and start engine
	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// Start dashboard API server if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("polymarket market maker started",
		"condition_id", cfg.Market.ConditionID,
		"order_size", cfg.Strategy.BaseOrderSize,
		"max_position_size", cfg.Risk.MaxPositionSize,
		"dry_run", cfg.DryRun,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	// Stop dashboard first
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

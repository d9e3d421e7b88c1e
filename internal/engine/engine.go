// Package engine wires the five trading-core tasks — market feed, user feed,
// strategy, executor, monitor — plus the independent negative-risk scanner
// into a single running process sharing one state.State instance and two
// bounded queues.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"polymm/internal/api"
	"polymm/internal/config"
	"polymm/internal/exchange"
	"polymm/internal/executor"
	"polymm/internal/feed"
	"polymm/internal/monitor"
	"polymm/internal/scanner"
	"polymm/internal/state"
	"polymm/internal/strategy"
	"polymm/pkg/types"
)

const (
	marketQueueCapacity  = 1024
	commandQueueCapacity = 1024
	dashboardEventBuffer = 256
)

// Engine owns the shared state, the two queues, and every task goroutine. It
// implements api.StateProvider so the dashboard can read a consistent
// snapshot without touching the tasks directly.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	auth       *exchange.Auth
	client     *exchange.Client
	splitMerge *exchange.SplitMergeAdapter
	marketWS   *exchange.WSFeed
	userWS     *exchange.WSFeed

	state *state.State

	marketQueue  chan types.MarketUpdate
	commandQueue chan types.Command

	marketFeed *feed.Market
	userFeed   *feed.User
	strategy   *strategy.Task
	executor   *executor.Task
	monitor    *monitor.Task
	scanner    *scanner.Task

	events chan api.DashboardEvent

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs the engine: derives exchange auth, bootstraps or loads
// state, and wires every task without starting any goroutines.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	auth, err := exchange.NewAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("create auth: %w", err)
	}

	client, err := exchange.NewClient(cfg, auth, logger)
	if err != nil {
		return nil, fmt.Errorf("create exchange client: %w", err)
	}

	if !auth.HasL2Credentials() {
		if _, err := client.DeriveAPIKey(context.Background()); err != nil {
			return nil, fmt.Errorf("derive L2 api key: %w", err)
		}
	}

	splitMerge := exchange.NewSplitMergeAdapter(cfg.API.RelayerBaseURL, auth, cfg.Market.CTFAddress, cfg.Market.CollateralAddr)

	st, err := state.Load(cfg.Store.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("load state snapshot: %w", err)
	}
	if st == nil {
		st = state.New(cfg.Market.YesTokenID, cfg.Market.NoTokenID, cfg.Risk.MaxInventoryImbalance, cfg.Risk.MaxPositionSize)
		if err := bootstrapInventory(context.Background(), client, cfg, st, logger); err != nil {
			logger.Warn("positions bootstrap failed, starting from zero inventory", "error", err)
		}
	}

	marketQueue := make(chan types.MarketUpdate, marketQueueCapacity)
	commandQueue := make(chan types.Command, commandQueueCapacity)

	marketWS := exchange.NewMarketFeed(cfg.API.WSMarketURL, logger)
	userWS := exchange.NewUserFeed(cfg.API.WSUserURL, auth, logger)

	events := make(chan api.DashboardEvent, dashboardEventBuffer)
	emit := api.Emitter(func(evt api.DashboardEvent) {
		select {
		case events <- evt:
		default:
			logger.Warn("dashboard event buffer full, dropping event", "type", evt.Type)
		}
	})

	marketFeed := feed.NewMarket(marketWS, cfg.Market.YesTokenID, marketQueue, logger)
	userFeed := feed.NewUser(userWS, cfg.Market.YesTokenID, st, emit, logger)
	strategyTask := strategy.New(cfg.Strategy, cfg.Risk, st, marketQueue, commandQueue, emit, logger)
	executorTask := executor.New(client, splitMerge, st, commandQueue, cfg.Market.NegRisk, emit, logger)
	monitorTask := monitor.New(st, logger)

	var scannerTask *scanner.Task
	if cfg.Scanner.Enabled {
		scannerTask = scanner.New(cfg.API.GammaBaseURL, cfg.Scanner, st.IsShuttingDown, emit, logger)
	}

	return &Engine{
		cfg:          cfg,
		logger:       logger.With("component", "engine"),
		auth:         auth,
		client:       client,
		splitMerge:   splitMerge,
		marketWS:     marketWS,
		userWS:       userWS,
		state:        st,
		marketQueue:  marketQueue,
		commandQueue: commandQueue,
		marketFeed:   marketFeed,
		userFeed:     userFeed,
		strategy:     strategyTask,
		executor:     executorTask,
		monitor:      monitorTask,
		scanner:      scannerTask,
		events:       events,
	}, nil
}

// bootstrapInventory seeds inventory from the REST positions endpoint so a
// fresh process (no snapshot on disk) doesn't start believing it holds zero
// of a token it actually holds.
func bootstrapInventory(ctx context.Context, client *exchange.Client, cfg config.Config, st *state.State, logger *slog.Logger) error {
	entries, err := client.GetPositions(ctx, cfg.Wallet.ProxyWallet, cfg.Market.ConditionID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		size := parseFloat(e.Size)
		token := cfg.Market.YesTokenID
		if e.OppositeAsset {
			token = cfg.Market.NoTokenID
		}
		st.ApplyInventoryDelta(token, size)
		st.SetPosition(types.PositionRecord{
			TokenID:       token,
			AvgEntryPrice: parseFloat(e.AvgPrice),
			RealizedPnL:   parseFloat(e.RealizedPnl),
			MarkPrice:     parseFloat(e.CurPrice),
			OppositeLeg:   e.OppositeAsset,
		})
	}
	logger.Info("inventory bootstrapped from positions endpoint", "entries", len(entries))
	return nil
}

func parseFloat(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}

// Start launches every task goroutine. It subscribes both WebSocket feeds,
// then starts the market feed, user feed, strategy, executor, and monitor —
// tracked by one WaitGroup so Stop can wait for a clean drain — plus the
// independent scanner goroutine.
func (e *Engine) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if err := e.marketWS.Subscribe(ctx, []string{e.cfg.Market.YesTokenID}); err != nil {
		cancel()
		return fmt.Errorf("subscribe market feed: %w", err)
	}
	if err := e.userWS.Subscribe(ctx, []string{e.cfg.Market.ConditionID}); err != nil {
		cancel()
		return fmt.Errorf("subscribe user feed: %w", err)
	}

	e.wg.Add(8)
	go func() { defer e.wg.Done(); e.marketWS.Run(ctx) }()
	go func() { defer e.wg.Done(); e.marketFeed.Run(ctx) }()
	go func() { defer e.wg.Done(); e.userWS.Run(ctx) }()
	go func() { defer e.wg.Done(); e.userFeed.Run(ctx) }()
	go func() { defer e.wg.Done(); e.strategy.Run(ctx) }()
	// The executor runs on its own background context rather than the
	// shared cancellable one: it must keep draining the command queue past
	// the point Stop cancels everything else, so it can observe the
	// Shutdown command instead of racing ctx.Done() in its select.
	go func() { defer e.wg.Done(); e.executor.Run(context.Background(), e.cfg.Market.ConditionID, e.cfg.Wallet.ProxyWallet) }()
	go func() { defer e.wg.Done(); e.monitor.Run(ctx) }()
	go func() { defer e.wg.Done(); e.watchMarketFeedStaleness(ctx) }()

	if e.scanner != nil {
		e.wg.Add(1)
		go func() { defer e.wg.Done(); e.scanner.Run(ctx) }()
	}

	e.logger.Info("engine started",
		"condition_id", e.cfg.Market.ConditionID,
		"yes_token", e.cfg.Market.YesTokenID,
		"dry_run", e.cfg.DryRun,
	)
	return nil
}

// Stop signals a graceful shutdown: flips shutting_down, drains resting
// orders via a CancelAll command, asks the executor to perform its terminal
// merge via a Shutdown command, then cancels the context and waits for every
// task to exit before persisting the final snapshot.
func (e *Engine) Stop() {
	e.logger.Info("stopping engine")
	e.state.BeginShutdown()

	e.commandQueue <- types.Command{Kind: types.CmdCancelAll, IssuedAt: time.Now()}
	e.commandQueue <- types.Command{Kind: types.CmdShutdown, IssuedAt: time.Now()}

	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	if err := e.state.Save(e.cfg.Store.SnapshotPath); err != nil {
		e.logger.Error("failed to persist final state snapshot", "error", err)
	}
	e.logger.Info("engine stopped")
}

// Snap implements api.StateProvider.
func (e *Engine) Snap() state.Snapshot { return e.state.Snap() }

// ConditionID implements api.StateProvider.
func (e *Engine) ConditionID() string { return e.cfg.Market.ConditionID }

// YesTokenID implements api.StateProvider.
func (e *Engine) YesTokenID() string { return e.cfg.Market.YesTokenID }

// NoTokenID implements api.StateProvider.
func (e *Engine) NoTokenID() string { return e.cfg.Market.NoTokenID }

// DashboardEvents exposes the live fill/order/risk event stream the core
// tasks push onto. The dashboard server reads this to broadcast events to
// connected clients as they happen, rather than only on snapshot poll.
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent { return e.events }

// marketFeedStaleAfter bounds how long the market feed's book mirror may go
// without an update before the feed is considered dead rather than merely
// quiet. A live market book event or price_change refreshes it far more
// often than this under normal conditions.
const marketFeedStaleAfter = 30 * time.Second

// watchMarketFeedStaleness logs once when the market feed's book mirror goes
// stale and once more when it recovers, so a dropped WS connection shows up
// in the logs even if the socket itself never errors.
func (e *Engine) watchMarketFeedStaleness(ctx context.Context) {
	ticker := time.NewTicker(marketFeedStaleAfter / 3)
	defer ticker.Stop()

	wasStale := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stale := e.marketFeed.Stale(marketFeedStaleAfter)
			if stale && !wasStale {
				e.logger.Warn("market feed stale, no book update recently", "threshold", marketFeedStaleAfter)
			} else if !stale && wasStale {
				e.logger.Info("market feed recovered")
			}
			wasStale = stale
		}
	}
}

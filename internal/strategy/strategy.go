// Package strategy implements the edge-based quoting rule that replaces the
// reference Avellaneda-Stoikov maker for the single-market trading core. It
// consumes the market queue and emits commands onto the command queue; it
// never touches the exchange directly and never blocks on network I/O.
package strategy

import (
	"context"
	"log/slog"
	"math"
	"time"

	"polymm/internal/api"
	"polymm/internal/config"
	"polymm/internal/state"
	"polymm/pkg/types"
)

// Task is the strategy task described by §4.3: for every market update, it
// either pauses trading, requotes, or does nothing, following a fixed
// seven-step procedure.
type Task struct {
	cfg     config.StrategyConfig
	risk    config.RiskConfig
	state   *state.State
	queue   <-chan types.MarketUpdate
	command chan<- types.Command
	emit    api.Emitter
	logger  *slog.Logger
}

// New creates a strategy task. emit may be nil when the dashboard is disabled.
func New(cfg config.StrategyConfig, risk config.RiskConfig, st *state.State, queue <-chan types.MarketUpdate, command chan<- types.Command, emit api.Emitter, logger *slog.Logger) *Task {
	return &Task{
		cfg:     cfg,
		risk:    risk,
		state:   st,
		queue:   queue,
		command: command,
		emit:    emit,
		logger:  logger.With("component", "strategy"),
	}
}

// Run consumes the market queue until ctx is cancelled or the queue closes.
// Per §5, queued updates still in flight at shutdown are dropped rather than
// processed.
func (t *Task) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-t.queue:
			if !ok {
				return
			}
			t.onUpdate(ctx, update)
		}
	}
}

// onUpdate runs the seven-step procedure of §4.3 for a single market update.
func (t *Task) onUpdate(ctx context.Context, update types.MarketUpdate) {
	// Step 1: shutdown guard.
	if t.state.IsShuttingDown() {
		return
	}

	// Step 2: record last price.
	t.state.RecordPrice(update.AssetID, update.BestBid, update.BestAsk, update.Received)

	// Step 3: extreme-price guard.
	low, high := t.cfg.ExtremeLow, t.cfg.ExtremeHigh
	if update.BestBid <= low || update.BestBid >= high || update.BestAsk <= low || update.BestAsk >= high {
		if !t.state.IsRiskPaused() {
			t.emit.Emit("risk", api.NewRiskEvent(true, "extreme price"))
		}
		t.state.SetRiskPaused(true)
		t.enqueue(ctx, types.Command{Kind: types.CmdCancelAll, IssuedAt: time.Now()})
		return
	}
	if t.state.IsRiskPaused() {
		t.emit.Emit("risk", api.NewRiskEvent(false, ""))
	}
	t.state.SetRiskPaused(false)

	// Step 4: requote gate.
	bucket := state.Bucket(update.BestBid, update.BestAsk)
	shouldRequote, hasOpenOrders := t.state.RequoteGate(update.AssetID, bucket)
	if !shouldRequote {
		return
	}

	// Step 5: cancel stale quotes before placing new ones.
	if hasOpenOrders {
		t.enqueue(ctx, types.Command{Kind: types.CmdCancelAll, IssuedAt: time.Now()})
	}

	// Step 6: compute quantized quotes.
	ourBid, ourAsk := t.quote(update.BestBid, update.BestAsk)

	// Step 7: emit the two-Sell pair, sizing for inventory skew/suppression.
	size := t.orderSize(update.AssetID)
	if size <= 0 {
		t.logger.Debug("order size suppressed by risk limits", "asset", update.AssetID)
		return
	}

	complement, ok := t.state.Complement(update.AssetID)
	if !ok {
		t.logger.Error("no complement token configured", "asset", update.AssetID)
		return
	}

	t.enqueue(ctx, types.Command{
		Kind: types.CmdCreate,
		Bid: &types.UserOrder{
			TokenID:   complement,
			Price:     round2(1 - ourBid),
			Size:      size,
			Side:      types.SELL,
			OrderType: types.OrderTypeGTC,
		},
		Ask: &types.UserOrder{
			TokenID:   update.AssetID,
			Price:     ourAsk,
			Size:      size,
			Side:      types.SELL,
			OrderType: types.OrderTypeGTC,
		},
		IssuedAt: time.Now(),
	})
}

// quote computes the quantized bid/ask per §4.3 step 6: widen by EDGE, clamp
// to [0.01, 0.99], then quantize to the penny grid (bid rounds up, ask rounds
// down, so both move toward the market) and re-clamp.
func (t *Task) quote(bestBid, bestAsk float64) (bid, ask float64) {
	edge := t.cfg.Edge

	rawBid := clamp(bestBid*(1-edge), 0.01, 0.99)
	rawAsk := clamp(bestAsk*(1+edge), 0.01, 0.99)

	bid = clamp(math.Ceil(rawBid*100)/100, 0.01, 0.99)
	ask = clamp(math.Floor(rawAsk*100)/100, 0.01, 0.99)
	return bid, ask
}

// orderSize returns the base order size, optionally skewed or suppressed by
// inventory-imbalance and position-size limits. Suppression is active
// whenever MaxPositionSize > 0 (config defaults it to 50): it returns 0 once
// |inventory[asset]| in token units reaches the limit; it does not weight
// inventory by price into a dollar value. Skew applies only when SkewEnabled
// is set and AggressiveSkew is non-zero: when the token-unit difference
// between asset and its complement exceeds MaxInventoryImbalance, the size
// is scaled by (1 - AggressiveSkew); quote prices are not shifted.
func (t *Task) orderSize(asset string) float64 {
	size := t.cfg.BaseOrderSize

	if t.risk.MaxPositionSize > 0 {
		if math.Abs(t.state.Inventory(asset)) >= t.risk.MaxPositionSize {
			return 0
		}
	}

	if !t.cfg.SkewEnabled || t.cfg.AggressiveSkew == 0 {
		return size
	}

	complement, ok := t.state.Complement(asset)
	if !ok {
		return size
	}
	imbalance := t.state.Inventory(asset) - t.state.Inventory(complement)
	if t.risk.MaxInventoryImbalance > 0 && math.Abs(imbalance) > t.risk.MaxInventoryImbalance {
		skew := 1 - t.cfg.AggressiveSkew
		if skew < 0 {
			skew = 0
		}
		size *= skew
	}
	return size
}

func (t *Task) enqueue(ctx context.Context, cmd types.Command) {
	select {
	case t.command <- cmd:
	case <-ctx.Done():
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

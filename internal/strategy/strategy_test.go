package strategy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"polymm/internal/config"
	"polymm/internal/state"
	"polymm/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTask(cfg config.StrategyConfig, risk config.RiskConfig) (*Task, *state.State, chan types.MarketUpdate, chan types.Command) {
	st := state.New("yes-token", "no-token", risk.MaxInventoryImbalance, risk.MaxPositionSize)
	queue := make(chan types.MarketUpdate, 8)
	command := make(chan types.Command, 8)
	task := New(cfg, risk, st, queue, command, nil, discardLogger())
	return task, st, queue, command
}

func TestOnUpdate_ExtremePriceGuard(t *testing.T) {
	t.Parallel()

	cfg := config.StrategyConfig{Edge: 0.02, BaseOrderSize: 10, ExtremeLow: 0.05, ExtremeHigh: 0.95}
	task, st, _, command := newTestTask(cfg, config.RiskConfig{})

	task.onUpdate(context.Background(), types.MarketUpdate{
		AssetID: "yes-token", BestBid: 0.01, BestAsk: 0.02, Received: time.Now(),
	})

	if !st.IsRiskPaused() {
		t.Fatal("expected risk_paused to be true after an extreme-price update")
	}

	select {
	case cmd := <-command:
		if cmd.Kind != types.CmdCancelAll {
			t.Fatalf("expected CmdCancelAll, got %v", cmd.Kind)
		}
	default:
		t.Fatal("expected a cancel-all command to be enqueued")
	}
}

func TestOnUpdate_ShutdownGuardSuppressesEverything(t *testing.T) {
	t.Parallel()

	cfg := config.StrategyConfig{Edge: 0.02, BaseOrderSize: 10, ExtremeLow: 0.02, ExtremeHigh: 0.98}
	task, st, _, command := newTestTask(cfg, config.RiskConfig{})
	st.BeginShutdown()

	task.onUpdate(context.Background(), types.MarketUpdate{
		AssetID: "yes-token", BestBid: 0.5, BestAsk: 0.52, Received: time.Now(),
	})

	select {
	case cmd := <-command:
		t.Fatalf("expected no command while shutting down, got %v", cmd.Kind)
	default:
	}
}

func TestOnUpdate_RequotesOnBucketChangeAndEmitsTwoSells(t *testing.T) {
	t.Parallel()

	cfg := config.StrategyConfig{Edge: 0.02, BaseOrderSize: 10, ExtremeLow: 0.02, ExtremeHigh: 0.98}
	task, _, _, command := newTestTask(cfg, config.RiskConfig{})

	task.onUpdate(context.Background(), types.MarketUpdate{
		AssetID: "yes-token", BestBid: 0.50, BestAsk: 0.52, Received: time.Now(),
	})

	select {
	case cmd := <-command:
		if cmd.Kind != types.CmdCreate {
			t.Fatalf("expected CmdCreate, got %v", cmd.Kind)
		}
		if cmd.Bid == nil || cmd.Ask == nil {
			t.Fatal("expected both Bid and Ask legs populated")
		}
		if cmd.Bid.TokenID != "no-token" {
			t.Fatalf("expected the bid leg to sell the complement token, got %q", cmd.Bid.TokenID)
		}
		if cmd.Ask.TokenID != "yes-token" {
			t.Fatalf("expected the ask leg to sell the configured token, got %q", cmd.Ask.TokenID)
		}
		if cmd.Bid.Side != types.SELL || cmd.Ask.Side != types.SELL {
			t.Fatal("both legs of the two-Sell pattern must be SELL orders")
		}
	default:
		t.Fatal("expected a create command on the first update for a bucket")
	}
}

func TestOnUpdate_NoRequoteWhenBucketUnchangedAndOrdersStillResting(t *testing.T) {
	t.Parallel()

	cfg := config.StrategyConfig{Edge: 0.02, BaseOrderSize: 10, ExtremeLow: 0.02, ExtremeHigh: 0.98}
	task, st, _, command := newTestTask(cfg, config.RiskConfig{})

	update := types.MarketUpdate{AssetID: "yes-token", BestBid: 0.50, BestAsk: 0.52, Received: time.Now()}
	task.onUpdate(context.Background(), update)
	<-command // drain the first create

	// Simulate the executor having placed the ask leg so the gate sees a
	// resting order for this asset on the next identical update.
	st.InsertOrder(types.Order{ID: "o1", AssetID: "yes-token", Side: types.SELL, Price: 0.53, Size: 10})

	task.onUpdate(context.Background(), update)
	select {
	case cmd := <-command:
		t.Fatalf("expected no second command for an unchanged bucket with a resting order, got %v", cmd.Kind)
	default:
	}
}

func TestQuote_WidensAndClampsToPennyGrid(t *testing.T) {
	t.Parallel()

	task := &Task{cfg: config.StrategyConfig{Edge: 0.02}}

	bid, ask := task.quote(0.50, 0.52)
	if bid >= 0.50 {
		t.Fatalf("expected bid to widen below best bid, got %v", bid)
	}
	if ask <= 0.52 {
		t.Fatalf("expected ask to widen above best ask, got %v", ask)
	}

	bid, ask = task.quote(0.001, 0.999)
	if bid < 0.01 || ask > 0.99 {
		t.Fatalf("expected quotes clamped to [0.01, 0.99], got bid=%v ask=%v", bid, ask)
	}
}

func TestOrderSize_SuppressedAtMaxPositionSize(t *testing.T) {
	t.Parallel()

	cfg := config.StrategyConfig{BaseOrderSize: 10}
	risk := config.RiskConfig{MaxPositionSize: 5}
	task, st, _, _ := newTestTask(cfg, risk)

	st.ApplyInventoryDelta("yes-token", 5)
	if size := task.orderSize("yes-token"); size != 0 {
		t.Fatalf("expected order size suppressed at the position cap, got %v", size)
	}
}

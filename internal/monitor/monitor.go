// Package monitor implements the read-only task that prints a periodic
// human-readable snapshot of the trading core. It never mutates state.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"polymm/internal/state"
)

const interval = 5 * time.Second

// Task prints a snapshot of shared state every interval until ctx is
// cancelled.
type Task struct {
	state  *state.State
	logger *slog.Logger
}

// New creates a monitor task.
func New(st *state.State, logger *slog.Logger) *Task {
	return &Task{state: st, logger: logger.With("component", "monitor")}
}

// Run prints snapshots on a fixed ticker until shutting_down is observed or
// ctx is cancelled.
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := t.state.Snap()
			if snap.ShuttingDown {
				return
			}
			t.print(snap)
		}
	}
}

func (t *Task) print(snap state.Snapshot) {
	buyCount, sellCount := 0, 0
	for _, o := range snap.OpenOrders {
		switch o.Side {
		case "BUY":
			buyCount++
		case "SELL":
			sellCount++
		}
	}

	var spreadDesc string
	for asset, p := range snap.LastPrices {
		spreadDesc += fmt.Sprintf(" %s[bid=%.4f ask=%.4f]", asset, p.BestBid, p.BestAsk)
	}

	t.logger.Info("snapshot",
		"risk_paused", snap.RiskPaused,
		"shutting_down", snap.ShuttingDown,
		"open_orders", len(snap.OpenOrders),
		"buy_orders", buyCount,
		"sell_orders", sellCount,
		"inventory", snap.Inventory,
		"prices", spreadDesc,
	)
}

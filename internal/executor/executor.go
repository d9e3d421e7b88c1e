// Package executor implements the sole task allowed to place, cancel, or
// settle anything against the exchange. It consumes the command queue in
// strict FIFO order and applies the fixed behavior table of §4.4 — it never
// decides whether to trade, only how to carry out what the strategy already
// decided.
package executor

import (
	"context"
	"log/slog"
	"math"

	"polymm/internal/api"
	"polymm/internal/exchange"
	"polymm/internal/state"
	"polymm/pkg/types"
)

// Task is the executor: the single writer to the exchange.
type Task struct {
	client     *exchange.Client
	splitMerge *exchange.SplitMergeAdapter
	state      *state.State
	command    <-chan types.Command
	negRisk    bool
	emit       api.Emitter
	logger     *slog.Logger
}

// New creates an executor task. emit may be nil when the dashboard is disabled.
func New(client *exchange.Client, splitMerge *exchange.SplitMergeAdapter, st *state.State, command <-chan types.Command, negRisk bool, emit api.Emitter, logger *slog.Logger) *Task {
	return &Task{
		client:     client,
		splitMerge: splitMerge,
		state:      st,
		command:    command,
		negRisk:    negRisk,
		emit:       emit,
		logger:     logger.With("component", "executor"),
	}
}

// Run drains the command queue in order until ctx is cancelled, handling
// shutdown last per §5: it continues processing whatever is already queued,
// then performs the terminal merge once a Shutdown command is seen.
func (t *Task) Run(ctx context.Context, conditionID, safeWallet string) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-t.command:
			if !ok {
				return
			}
			if cmd.Kind == types.CmdShutdown {
				t.handleShutdown(context.Background(), conditionID, safeWallet)
				return
			}
			t.apply(ctx, cmd)
		}
	}
}

func (t *Task) apply(ctx context.Context, cmd types.Command) {
	switch cmd.Kind {
	case types.CmdCreate:
		t.handleCreate(ctx, cmd)
	case types.CmdCancel:
		t.handleCancel(ctx, cmd.OrderIDs)
	case types.CmdCancelAll:
		t.handleCancelAll(ctx)
	case types.CmdSplit, types.CmdMerge:
		t.handleSplitMerge(ctx, cmd)
	default:
		t.logger.Warn("unknown command kind", "kind", cmd.Kind)
	}
}

// handleCreate signs and posts the bid/ask pair. A rejection is logged, not
// retried, and the order is never inserted into my_open_orders — the
// placement simply never happened as far as the core is concerned.
func (t *Task) handleCreate(ctx context.Context, cmd types.Command) {
	orders := make([]types.UserOrder, 0, 2)
	if cmd.Bid != nil {
		orders = append(orders, *cmd.Bid)
	}
	if cmd.Ask != nil {
		orders = append(orders, *cmd.Ask)
	}
	if len(orders) == 0 {
		return
	}

	results, err := t.client.PostOrders(ctx, orders, t.negRisk)
	if err != nil {
		t.logger.Error("post orders failed", "error", err)
		return
	}

	for i, result := range results {
		if !result.Success {
			t.logger.Warn("order rejected", "order_id", result.OrderID, "error", result.ErrorMsg)
			continue
		}
		t.state.InsertOrder(types.Order{
			ID:      result.OrderID,
			AssetID: orders[i].TokenID,
			Side:    orders[i].Side,
			Price:   orders[i].Price,
			Size:    orders[i].Size,
		})
		t.emit.Emit("order", api.NewOrderEvent(result.OrderID, "PLACED", string(orders[i].Side), orders[i].TokenID, orders[i].Price, orders[i].Size))
	}
}

// handleCancel cancels specific order IDs. A failure leaves the order in
// my_open_orders for reconciliation by the user feed, per §4.4.
func (t *Task) handleCancel(ctx context.Context, orderIDs []string) {
	result, err := t.client.CancelOrders(ctx, orderIDs)
	if err != nil {
		t.logger.Error("cancel orders failed", "error", err, "order_ids", orderIDs)
		return
	}
	for _, id := range result.Canceled {
		t.state.RemoveOrder(id)
		t.emit.Emit("order", api.NewOrderEvent(id, "CANCELLED", "", "", 0, 0))
	}
}

// handleCancelAll clears every resting order. Per §4.4, my_open_orders is
// cleared locally even if the exchange call fails — best-effort convergence
// rather than leaving a stale map behind.
func (t *Task) handleCancelAll(ctx context.Context) {
	if _, err := t.client.CancelAll(ctx); err != nil {
		t.logger.Error("cancel-all failed", "error", err)
	}
	t.state.ClearOrders()
}

func (t *Task) handleSplitMerge(ctx context.Context, cmd types.Command) {
	if cmd.SplitMerge == nil {
		return
	}
	req := cmd.SplitMerge
	txHash, err := t.splitMerge.Execute(ctx, req.Kind, req.AmountUSD, req.ConditionID, req.SafeWallet, req.NegRisk)
	if err != nil {
		t.logger.Error("split/merge failed", "kind", req.Kind, "error", err)
		return
	}
	t.logger.Info("split/merge submitted", "kind", req.Kind, "amount", req.AmountUSD, "tx_hash", txHash)
}

// handleShutdown computes the terminal merge amount — the floor of the
// smaller side of the YES/NO pair — and calls the split/merge adapter in
// merge mode. A failure is logged; the process exits regardless.
func (t *Task) handleShutdown(ctx context.Context, conditionID, safeWallet string) {
	yesToken := t.state.YesToken()
	noToken, ok := t.state.Complement(yesToken)
	if !ok {
		t.logger.Warn("no complement token configured, skipping terminal merge")
		return
	}

	yesQty := t.state.Inventory(yesToken)
	noQty := t.state.Inventory(noToken)
	amount := math.Floor(math.Min(math.Abs(yesQty), math.Abs(noQty)))
	if amount <= 0 {
		t.logger.Info("no matched inventory to merge at shutdown")
		return
	}

	txHash, err := t.splitMerge.Execute(ctx, types.SplitMergeMerge, amount, conditionID, safeWallet, t.negRisk)
	if err != nil {
		t.logger.Error("terminal merge failed", "error", err)
		return
	}
	t.logger.Info("terminal merge submitted", "amount", amount, "tx_hash", txHash)
}

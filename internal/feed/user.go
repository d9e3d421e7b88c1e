package feed

import (
	"context"
	"log/slog"

	"polymm/internal/api"
	"polymm/internal/exchange"
	"polymm/internal/market"
	"polymm/internal/state"
	"polymm/pkg/types"
)

// User consumes trade and order lifecycle events for the configured market
// and reconciles inventory and my_open_orders directly into shared state. It
// never reads the market queue and never produces commands.
//
// Fills land against either leg of the pair — the strategy quotes a sell of
// YES and a sell of the NO-side exposure against the complement token — so
// both assetIDs the condition id's two tokens resolve to are reconciled,
// not just the configured YES token.
type User struct {
	ws       *exchange.WSFeed
	yesToken string
	state    *state.State
	emit     api.Emitter
	logger   *slog.Logger
}

// NewUser creates a user feed task. emit may be nil when the dashboard is disabled.
func NewUser(ws *exchange.WSFeed, yesToken string, st *state.State, emit api.Emitter, logger *slog.Logger) *User {
	return &User{
		ws:       ws,
		yesToken: yesToken,
		state:    st,
		emit:     emit,
		logger:   logger.With("component", "user_feed"),
	}
}

// Run reconciles WS trade/order events into shared state until ctx is
// cancelled.
func (u *User) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case trade, ok := <-u.ws.TradeEvents():
			if !ok {
				return
			}
			u.handleTrade(trade)

		case order, ok := <-u.ws.OrderEvents():
			if !ok {
				return
			}
			u.handleOrder(order)
		}
	}
}

// handleTrade applies a fill to inventory exactly once, on the MATCHED
// status. MINED and CONFIRMED are later confirmations of the same trade and
// are ignored to avoid double counting.
func (u *User) handleTrade(evt types.WSTradeEvent) {
	if !u.tracked(evt.AssetID) {
		return
	}
	if evt.Status != "MATCHED" {
		u.logger.Debug("ignoring non-matched trade status", "id", evt.ID, "status", evt.Status)
		return
	}

	size := market.ParsePrice(evt.Size)
	delta := size
	if evt.Side == "SELL" {
		delta = -size
	}

	u.state.ApplyInventoryDelta(evt.AssetID, delta)
	inventoryAfter := u.state.Inventory(evt.AssetID)
	u.logger.Info("trade reconciled",
		"id", evt.ID,
		"side", evt.Side,
		"size", size,
		"price", market.ParsePrice(evt.Price),
	)
	u.emit.Emit("fill", api.NewFillEvent(evt, market.ParsePrice(evt.Price), size, inventoryAfter))
}

// handleOrder reconciles my_open_orders against a placement, update, or
// cancellation notification.
func (u *User) handleOrder(evt types.WSOrderEvent) {
	if !u.tracked(evt.AssetID) {
		return
	}

	switch evt.Type {
	case "PLACEMENT", "UPDATE":
		side := types.BUY
		if evt.Side == "SELL" {
			side = types.SELL
		}
		u.state.InsertOrder(types.Order{
			ID:      evt.ID,
			AssetID: evt.AssetID,
			Side:    side,
			Price:   market.ParsePrice(evt.Price),
			Size:    market.ParsePrice(evt.OriginalSize),
		})

	case "CANCELLATION":
		u.state.RemoveOrder(evt.ID)

	default:
		u.logger.Debug("ignoring order event type", "type", evt.Type)
	}
}

// tracked reports whether assetID is one of this market's two tokens.
func (u *User) tracked(assetID string) bool {
	if assetID == u.yesToken {
		return true
	}
	complement, ok := u.state.Complement(u.yesToken)
	return ok && assetID == complement
}

package api

import (
	"time"

	"polymm/pkg/types"
)

// DashboardEvent is the wrapper for all events broadcast to dashboard
// clients over the WebSocket hub.
type DashboardEvent struct {
	Type      string      `json:"type"`      // "snapshot", "fill", "order", "risk", "arbitrage"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// FillEvent represents a trade fill notification from the user feed.
type FillEvent struct {
	TradeID     string  `json:"trade_id"`
	AssetID     string  `json:"asset_id"`
	Side        string  `json:"side"`    // "BUY" or "SELL"
	Outcome     string  `json:"outcome"` // "Yes" or "No"
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	InventoryAfter float64 `json:"inventory_after"`
}

// OrderEvent represents an order lifecycle transition emitted by the executor
// when it places an order or cancels one by id.
type OrderEvent struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"` // "PLACED", "CANCELLED"
	Side    string  `json:"side"`
	AssetID string  `json:"asset_id"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// RiskEvent is emitted whenever the risk_paused flag transitions.
type RiskEvent struct {
	Paused bool   `json:"paused"`
	Reason string `json:"reason"`
}

// QuoteEvent represents the strategy's most recent quote decision.
type QuoteEvent struct {
	BidPrice float64 `json:"bid_price"`
	AskPrice float64 `json:"ask_price"`
	MidPrice float64 `json:"mid_price"`
}

// BookUpdateEvent represents a top-of-book change from the market feed.
type BookUpdateEvent struct {
	AssetID    string    `json:"asset_id"`
	BestBid    float64   `json:"best_bid"`
	BestAsk    float64   `json:"best_ask"`
	MidPrice   float64   `json:"mid_price"`
	Spread     float64   `json:"spread"`
	UpdateTime time.Time `json:"update_time"`
}

// ArbitrageEvent represents a negative-risk arbitrage opportunity the
// scanner found: the outcome family's YES best-ask prices summed to
// materially less than 1.
type ArbitrageEvent struct {
	ConditionID string  `json:"condition_id"`
	PriceSum    float64 `json:"price_sum"`
	Threshold   float64 `json:"threshold"`
}

// NewArbitrageEvent creates a negative-risk arbitrage opportunity event.
func NewArbitrageEvent(conditionID string, priceSum, threshold float64) ArbitrageEvent {
	return ArbitrageEvent{ConditionID: conditionID, PriceSum: priceSum, Threshold: threshold}
}

// NewFillEvent creates a fill event from a trade and the inventory level it
// left behind.
func NewFillEvent(trade types.WSTradeEvent, price, size, inventoryAfter float64) FillEvent {
	return FillEvent{
		TradeID:        trade.ID,
		AssetID:        trade.AssetID,
		Side:           trade.Side,
		Outcome:        trade.Outcome,
		Price:          price,
		Size:           size,
		InventoryAfter: inventoryAfter,
	}
}

// NewOrderEvent creates an order event.
func NewOrderEvent(orderID, status, side, assetID string, price, size float64) OrderEvent {
	return OrderEvent{
		OrderID: orderID,
		Status:  status,
		Side:    side,
		AssetID: assetID,
		Price:   price,
		Size:    size,
	}
}

// NewRiskEvent creates a risk-pause transition event.
func NewRiskEvent(paused bool, reason string) RiskEvent {
	return RiskEvent{Paused: paused, Reason: reason}
}

// Emitter is handed to the core tasks so they can push a live event onto the
// dashboard stream without importing the hub itself. A nil Emitter is valid
// and simply drops events — the dashboard is optional.
type Emitter func(evt DashboardEvent)

// Emit wraps data in a timestamped DashboardEvent and sends it, tolerating a
// nil Emitter so callers never need to check whether the dashboard is on.
func (e Emitter) Emit(typ string, data interface{}) {
	if e == nil {
		return
	}
	e(DashboardEvent{Type: typ, Timestamp: time.Now(), Data: data})
}

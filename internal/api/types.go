package api

import (
	"time"

	"polymm/internal/config"
	"polymm/pkg/types"
)

// DashboardSnapshot represents the complete dashboard state for the single
// configured market this instance trades.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Market MarketStatus `json:"market"`

	RiskPaused   bool `json:"risk_paused"`
	ShuttingDown bool `json:"shutting_down"`

	Config ConfigSummary `json:"config"`
}

// OrderInfo is a single resting order, for dashboard display.
type OrderInfo struct {
	ID      string  `json:"id"`
	AssetID string  `json:"asset_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// MarketStatus represents the traded market's current state.
type MarketStatus struct {
	ConditionID string `json:"condition_id"`
	YesTokenID  string `json:"yes_token_id"`
	NoTokenID   string `json:"no_token_id"`

	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	LastUpdated time.Time `json:"last_updated"`

	OpenOrders []OrderInfo `json:"open_orders"`

	Inventory map[string]float64        `json:"inventory"`
	Positions []types.PositionRecord    `json:"positions"`
}

// ConfigSummary represents the strategy and risk configuration relevant to
// an operator watching the dashboard.
type ConfigSummary struct {
	Edge          float64 `json:"edge"`
	BaseOrderSize float64 `json:"base_order_size"`
	ExtremeLow    float64 `json:"extreme_low"`
	ExtremeHigh   float64 `json:"extreme_high"`

	MaxInventoryImbalance float64 `json:"max_inventory_imbalance"`
	MaxPositionSize       float64 `json:"max_position_size"`

	ScannerEnabled bool `json:"scanner_enabled"`
	DryRun         bool `json:"dry_run"`
}

// NewConfigSummary creates a config summary from config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Edge:                  cfg.Strategy.Edge,
		BaseOrderSize:         cfg.Strategy.BaseOrderSize,
		ExtremeLow:            cfg.Strategy.ExtremeLow,
		ExtremeHigh:           cfg.Strategy.ExtremeHigh,
		MaxInventoryImbalance: cfg.Risk.MaxInventoryImbalance,
		MaxPositionSize:       cfg.Risk.MaxPositionSize,
		ScannerEnabled:        cfg.Scanner.Enabled,
		DryRun:                cfg.DryRun,
	}
}

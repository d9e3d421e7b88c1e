package api

import (
	"time"

	"polymm/internal/config"
	"polymm/internal/state"
)

// StateProvider is the minimal read-only view the dashboard needs from the
// engine: a snapshot of shared state and the static market identifiers that
// never change for the lifetime of the process.
type StateProvider interface {
	Snap() state.Snapshot
	ConditionID() string
	YesTokenID() string
	NoTokenID() string
}

// BuildSnapshot aggregates shared state into a dashboard snapshot for the
// single market this instance trades.
func BuildSnapshot(provider StateProvider, cfg config.Config) DashboardSnapshot {
	snap := provider.Snap()

	yesToken := provider.YesTokenID()
	price := snap.LastPrices[yesToken]

	orders := make([]OrderInfo, 0, len(snap.OpenOrders))
	for _, o := range snap.OpenOrders {
		orders = append(orders, OrderInfo{
			ID:      o.ID,
			AssetID: o.AssetID,
			Side:    string(o.Side),
			Price:   o.Price,
			Size:    o.Size,
		})
	}

	market := MarketStatus{
		ConditionID: provider.ConditionID(),
		YesTokenID:  yesToken,
		NoTokenID:   provider.NoTokenID(),
		BestBid:     price.BestBid,
		BestAsk:     price.BestAsk,
		LastUpdated: price.Ts,
		OpenOrders:  orders,
		Inventory:   snap.Inventory,
	}
	for _, p := range snap.Positions {
		market.Positions = append(market.Positions, p)
	}

	return DashboardSnapshot{
		Timestamp:    time.Now(),
		Market:       market,
		RiskPaused:   snap.RiskPaused,
		ShuttingDown: snap.ShuttingDown,
		Config:       NewConfigSummary(cfg),
	}
}

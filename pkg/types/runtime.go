package types

import "time"

// Order is the trading core's own-order bookkeeping record: the minimal
// shape the strategy and executor need, independent of the exchange's own
// wire representation (OpenOrder). ID is empty until the executor receives a
// successful placement receipt.
type Order struct {
	ID      string  `json:"id,omitempty"`
	AssetID string  `json:"asset_id"`
	Side    Side    `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// MarketUpdate is the normalized top-of-book tick handed from the market feed
// task to the strategy task over the market queue. It collapses whatever
// shape arrived over the wire (book snapshot or price_change delta) into a
// single best_bid/best_ask pair so the strategy never has to know which kind
// of WS event produced it.
type MarketUpdate struct {
	AssetID  string
	BestBid  float64
	BestAsk  float64
	Received time.Time
}

// CommandKind enumerates the instructions the strategy (and the engine
// itself, for shutdown) can place on the command queue for the executor to
// carry out. Executor behavior per kind is a fixed table, not a strategy.
type CommandKind string

const (
	CmdCreate       CommandKind = "create"        // place a fresh bid/ask pair
	CmdCancel       CommandKind = "cancel"        // cancel specific order IDs
	CmdCancelAll    CommandKind = "cancel_all"     // cancel every resting order
	CmdSplit        CommandKind = "split"          // lock collateral, mint YES+NO
	CmdMerge        CommandKind = "merge"          // burn YES+NO, release collateral
	CmdShutdown     CommandKind = "shutdown"        // drain and stop accepting new work
)

// Command is the sum type carried on the command queue. Only the fields
// relevant to Kind are populated; the executor switches on Kind and ignores
// the rest.
type Command struct {
	Kind CommandKind

	// CmdCreate
	Bid *UserOrder
	Ask *UserOrder

	// CmdCancel
	OrderIDs []string

	// CmdSplit / CmdMerge
	SplitMerge *SplitMergeRequest

	IssuedAt time.Time
}

// SplitMergeKind distinguishes locking collateral into a YES+NO pair from
// burning a YES+NO pair back into collateral.
type SplitMergeKind string

const (
	SplitMergeSplit SplitMergeKind = "split"
	SplitMergeMerge SplitMergeKind = "merge"
)

// SplitMergeRequest is the argument to the split/merge adapter's execute
// contract: (kind, amount, condition_id, safe_wallet, neg_risk_flag) -> tx_hash.
type SplitMergeRequest struct {
	Kind        SplitMergeKind
	AmountUSD   float64
	ConditionID string
	SafeWallet  string
	NegRisk     bool
}

// PositionRecord captures the richer per-token accounting the REST positions
// bootstrap endpoint returns. It is display-only: nothing in the core
// invariants depends on it, it only feeds the dashboard snapshot.
type PositionRecord struct {
	TokenID       string  `json:"token_id"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	MarkPrice     float64 `json:"mark_price"`
	OppositeLeg   bool    `json:"opposite_leg"` // true for the complement (NO) token
}

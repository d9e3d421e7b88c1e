// Package state holds the single shared, mutex-guarded container that every
// task in the trading core reads and mutates: last prices, inventory, open
// orders, and the risk/shutdown flags. There is exactly one instance per
// process, constructed at startup and flushed to disk at shutdown.
//
// Every exported method takes the lock itself; callers never reach into the
// struct fields directly. Critical sections are kept short — a handful of
// field reads or writes — and no method here performs network I/O or blocks
// on a channel while holding the lock.
package state

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"polymm/pkg/types"
)

// PriceRecord is the last observed top-of-book for a token.
type PriceRecord struct {
	BestBid float64   `json:"best_bid"`
	BestAsk float64   `json:"best_ask"`
	Ts      time.Time `json:"ts"`
}

// snapshot is the JSON-serializable form persisted to disk. It mirrors
// State's fields exactly so Save/Load round-trip without translation.
type snapshot struct {
	MyOpenOrders          map[string]types.Order `json:"my_open_orders"`
	LastPrices            map[string]PriceRecord `json:"last_prices"`
	Inventory             map[string]float64     `json:"inventory"`
	YesToken              string                 `json:"yes_token"`
	TokenPairs            map[string]string      `json:"token_pairs"`
	LastMidBucket         map[string]int         `json:"last_mid_bucket"`
	RiskPaused            bool                   `json:"risk_paused"`
	ShuttingDown          bool                   `json:"shutting_down"`
	MaxInventoryImbalance float64                `json:"max_inventory_imbalance"`
	MaxPositionSize       float64                `json:"max_position_size"`
	Positions             map[string]types.PositionRecord `json:"positions,omitempty"`
}

// State is the single owner of all mutable trading-core data. One instance
// is shared by every task in the process.
type State struct {
	mu sync.Mutex

	myOpenOrders  map[string]types.Order
	lastPrices    map[string]PriceRecord
	inventory     map[string]float64
	yesToken      string
	tokenPairs    map[string]string
	lastMidBucket map[string]int
	riskPaused    bool
	shuttingDown  bool

	maxInventoryImbalance float64
	maxPositionSize       float64

	// positions holds the supplemented dashboard-only accounting bootstrapped
	// from the REST positions endpoint (§3's "Supplemented fields"). It is
	// never read by any invariant in §8.
	positions map[string]types.PositionRecord
}

// New constructs an empty State seeded with the given token pair and risk
// knobs. shuttingDown and riskPaused always start false.
func New(yesToken, noToken string, maxInventoryImbalance, maxPositionSize float64) *State {
	return &State{
		myOpenOrders:          make(map[string]types.Order),
		lastPrices:            make(map[string]PriceRecord),
		inventory:             make(map[string]float64),
		yesToken:              yesToken,
		tokenPairs:            map[string]string{yesToken: noToken, noToken: yesToken},
		lastMidBucket:         make(map[string]int),
		maxInventoryImbalance: maxInventoryImbalance,
		maxPositionSize:       maxPositionSize,
		positions:             make(map[string]types.PositionRecord),
	}
}

// YesToken returns the configured YES token id.
func (s *State) YesToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.yesToken
}

// Complement returns the token paired with the given token, and whether a
// pairing exists.
func (s *State) Complement(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokenPairs[token]
	return t, ok
}

// RiskLimits returns the configured inventory-imbalance and position-size
// caps. strategy.Task.orderSize compares its own configured copies of these
// against token quantities, not dollar values.
func (s *State) RiskLimits() (maxInventoryImbalance, maxPositionSize float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInventoryImbalance, s.maxPositionSize
}

// IsShuttingDown reports whether a shutdown has been signalled.
func (s *State) IsShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// BeginShutdown flips shutting_down to true. Idempotent.
func (s *State) BeginShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = true
}

// IsRiskPaused reports whether the strategy is currently paused.
func (s *State) IsRiskPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.riskPaused
}

// SetRiskPaused sets the risk_paused flag.
func (s *State) SetRiskPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskPaused = paused
}

// RecordPrice updates last_prices[asset].
func (s *State) RecordPrice(asset string, bestBid, bestAsk float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPrices[asset] = PriceRecord{BestBid: bestBid, BestAsk: bestAsk, Ts: ts}
}

// LastPrice returns the last recorded price for a token.
func (s *State) LastPrice(asset string) (PriceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lastPrices[asset]
	return p, ok
}

// Bucket returns the mid-price bucket ceil(mid*100) for (bestBid, bestAsk).
func Bucket(bestBid, bestAsk float64) int {
	mid := (bestBid + bestAsk) / 2
	return int(math.Ceil(mid * 100))
}

// RequoteGate compares bucket against the last recorded bucket for asset and
// atomically records the new one. It returns (shouldRequote, hasOpenOrders).
// shouldRequote is true iff the bucket changed or there are no open orders
// for the asset — matching §4.3 step 4 exactly.
func (s *State) RequoteGate(asset string, bucket int) (shouldRequote bool, hasOpenOrders bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.lastMidBucket[asset]
	s.lastMidBucket[asset] = bucket

	hasOpenOrders = s.hasOpenOrdersLocked(asset)
	if !had || prev != bucket {
		return true, hasOpenOrders
	}
	return !hasOpenOrders, hasOpenOrders
}

func (s *State) hasOpenOrdersLocked(asset string) bool {
	for _, o := range s.myOpenOrders {
		if o.AssetID == asset {
			return true
		}
	}
	return false
}

// HasOpenOrders reports whether any resting order exists for asset.
func (s *State) HasOpenOrders(asset string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOpenOrdersLocked(asset)
}

// InsertOrder inserts or refreshes an order keyed by id.
func (s *State) InsertOrder(o types.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myOpenOrders[o.ID] = o
}

// RemoveOrder deletes an order by id, if present.
func (s *State) RemoveOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.myOpenOrders, id)
}

// ClearOrders empties the open-order map (used by CancelAll convergence).
func (s *State) ClearOrders() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myOpenOrders = make(map[string]types.Order)
}

// OpenOrderIDs returns a snapshot of all currently open order ids.
func (s *State) OpenOrderIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.myOpenOrders))
	for id := range s.myOpenOrders {
		ids = append(ids, id)
	}
	return ids
}

// ApplyInventoryDelta adds delta (positive for buys, negative for sells) to
// inventory[token]. This is the single read-modify-write point both the user
// feed and the executor route through, so the mutex serializes them.
func (s *State) ApplyInventoryDelta(token string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[token] += delta
}

// InventorySnapshot returns a copy of the full inventory map.
func (s *State) InventorySnapshot() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.inventory))
	for k, v := range s.inventory {
		out[k] = v
	}
	return out
}

// Inventory returns the current held quantity for a single token.
func (s *State) Inventory(token string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[token]
}

// SetPosition records the supplemented dashboard accounting for a token.
func (s *State) SetPosition(p types.PositionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.TokenID] = p
}

// Snapshot returns a consistent point-in-time view for the monitor and
// dashboard: open orders keyed by order id, last prices, inventory
// quantities per token, and the risk/shutdown flags.
type Snapshot struct {
	OpenOrders    map[string]types.Order
	LastPrices    map[string]PriceRecord
	Inventory     map[string]float64
	RiskPaused    bool
	ShuttingDown  bool
	Positions     map[string]types.PositionRecord
}

// Snap takes the lock once and returns a deep-enough copy for read-only use.
func (s *State) Snap() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make(map[string]types.Order, len(s.myOpenOrders))
	for k, v := range s.myOpenOrders {
		orders[k] = v
	}
	prices := make(map[string]PriceRecord, len(s.lastPrices))
	for k, v := range s.lastPrices {
		prices[k] = v
	}
	inv := make(map[string]float64, len(s.inventory))
	for k, v := range s.inventory {
		inv[k] = v
	}
	pos := make(map[string]types.PositionRecord, len(s.positions))
	for k, v := range s.positions {
		pos[k] = v
	}

	return Snapshot{
		OpenOrders:   orders,
		LastPrices:   prices,
		Inventory:    inv,
		RiskPaused:   s.riskPaused,
		ShuttingDown: s.shuttingDown,
		Positions:    pos,
	}
}

// Save atomically persists the state to path (write to .tmp, then rename),
// the same crash-safe pattern used for position persistence.
func (s *State) Save(path string) error {
	s.mu.Lock()
	snap := snapshot{
		MyOpenOrders:          s.myOpenOrders,
		LastPrices:            s.lastPrices,
		Inventory:             s.inventory,
		YesToken:              s.yesToken,
		TokenPairs:            s.tokenPairs,
		LastMidBucket:         s.lastMidBucket,
		RiskPaused:            s.riskPaused,
		ShuttingDown:          s.shuttingDown,
		MaxInventoryImbalance: s.maxInventoryImbalance,
		MaxPositionSize:       s.maxPositionSize,
		Positions:             s.positions,
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores state from a prior snapshot at path. shutting_down and
// risk_paused are always normalized to false regardless of what was
// persisted. Returns (nil, nil) if no snapshot file exists — callers should
// fall back to New plus a REST inventory bootstrap.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal state snapshot: %w", err)
	}

	s := &State{
		myOpenOrders:          snap.MyOpenOrders,
		lastPrices:            snap.LastPrices,
		inventory:             snap.Inventory,
		yesToken:              snap.YesToken,
		tokenPairs:            snap.TokenPairs,
		lastMidBucket:         snap.LastMidBucket,
		riskPaused:            false,
		shuttingDown:          false,
		maxInventoryImbalance: snap.MaxInventoryImbalance,
		maxPositionSize:       snap.MaxPositionSize,
		positions:             snap.Positions,
	}
	if s.myOpenOrders == nil {
		s.myOpenOrders = make(map[string]types.Order)
	}
	if s.lastPrices == nil {
		s.lastPrices = make(map[string]PriceRecord)
	}
	if s.inventory == nil {
		s.inventory = make(map[string]float64)
	}
	if s.tokenPairs == nil {
		s.tokenPairs = make(map[string]string)
	}
	if s.lastMidBucket == nil {
		s.lastMidBucket = make(map[string]int)
	}
	if s.positions == nil {
		s.positions = make(map[string]types.PositionRecord)
	}
	return s, nil
}

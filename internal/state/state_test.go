package state

import (
	"path/filepath"
	"testing"
	"time"

	"polymm/pkg/types"
)

func TestRequoteGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		seedOrder         bool
		firstBucket       int
		secondBucket      int
		wantFirstRequote  bool
		wantSecondRequote bool
	}{
		{
			name:              "no prior bucket always requotes",
			firstBucket:       50,
			secondBucket:      50,
			wantFirstRequote:  true,
			wantSecondRequote: true, // unchanged bucket, but no order rests for the asset, so the gate still requotes
		},
		{
			name:              "bucket change always requotes even with resting orders",
			seedOrder:         true,
			firstBucket:       50,
			secondBucket:      51,
			wantFirstRequote:  true,
			wantSecondRequote: true,
		},
		{
			name:              "unchanged bucket with no open orders keeps requoting",
			firstBucket:       50,
			secondBucket:      50,
			wantFirstRequote:  true,
			wantSecondRequote: true,
		},
		{
			name:              "unchanged bucket with resting orders suppresses requote",
			seedOrder:         true,
			firstBucket:       50,
			secondBucket:      50,
			wantFirstRequote:  true,
			wantSecondRequote: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New("yes-token", "no-token", 0, 0)
			if tt.seedOrder {
				s.InsertOrder(types.Order{ID: "o1", AssetID: "yes-token", Side: types.SELL, Price: 0.5, Size: 10})
			}

			gotFirst, _ := s.RequoteGate("yes-token", tt.firstBucket)
			if gotFirst != tt.wantFirstRequote {
				t.Fatalf("first RequoteGate = %v, want %v", gotFirst, tt.wantFirstRequote)
			}

			gotSecond, _ := s.RequoteGate("yes-token", tt.secondBucket)
			if gotSecond != tt.wantSecondRequote {
				t.Fatalf("second RequoteGate = %v, want %v", gotSecond, tt.wantSecondRequote)
			}
		})
	}
}

func TestRequoteGate_HasOpenOrdersReflectsOnlyTheGivenAsset(t *testing.T) {
	t.Parallel()

	s := New("yes-token", "no-token", 0, 0)
	s.InsertOrder(types.Order{ID: "o1", AssetID: "no-token", Side: types.SELL, Price: 0.5, Size: 10})

	_, hasOpenOrders := s.RequoteGate("yes-token", 50)
	if hasOpenOrders {
		t.Error("expected hasOpenOrders=false for an asset with no resting orders of its own")
	}
}

func TestBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bid  float64
		ask  float64
		want int
	}{
		{name: "exact cent boundary", bid: 0.49, ask: 0.51, want: 50},
		{name: "rounds up a fractional cent", bid: 0.491, ask: 0.505, want: 50},
		{name: "near zero", bid: 0.0, ask: 0.0, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Bucket(tt.bid, tt.ask); got != tt.want {
				t.Errorf("Bucket(%v, %v) = %v, want %v", tt.bid, tt.ask, got, tt.want)
			}
		})
	}
}

func TestApplyInventoryDelta_AccumulatesAcrossCalls(t *testing.T) {
	t.Parallel()

	s := New("yes-token", "no-token", 0, 0)
	s.ApplyInventoryDelta("yes-token", 10)
	s.ApplyInventoryDelta("yes-token", -3.5)

	if got := s.Inventory("yes-token"); got != 6.5 {
		t.Errorf("Inventory = %v, want 6.5", got)
	}
}

func TestOrderLifecycle_InsertRemoveClear(t *testing.T) {
	t.Parallel()

	s := New("yes-token", "no-token", 0, 0)
	s.InsertOrder(types.Order{ID: "o1", AssetID: "yes-token", Side: types.SELL, Price: 0.5, Size: 10})
	s.InsertOrder(types.Order{ID: "o2", AssetID: "no-token", Side: types.SELL, Price: 0.5, Size: 10})

	if !s.HasOpenOrders("yes-token") || !s.HasOpenOrders("no-token") {
		t.Fatal("expected both legs to be tracked as open")
	}
	if len(s.OpenOrderIDs()) != 2 {
		t.Fatalf("OpenOrderIDs = %v, want 2 entries", s.OpenOrderIDs())
	}

	s.RemoveOrder("o1")
	if s.HasOpenOrders("yes-token") {
		t.Error("expected the yes-token leg to be removed")
	}
	if !s.HasOpenOrders("no-token") {
		t.Error("expected the no-token leg to remain")
	}

	s.ClearOrders()
	if s.HasOpenOrders("no-token") || len(s.OpenOrderIDs()) != 0 {
		t.Error("expected ClearOrders to empty the open-order set")
	}
}

func TestShutdownAndRiskFlags(t *testing.T) {
	t.Parallel()

	s := New("yes-token", "no-token", 0, 0)
	if s.IsShuttingDown() || s.IsRiskPaused() {
		t.Fatal("expected both flags to start false")
	}

	s.SetRiskPaused(true)
	if !s.IsRiskPaused() {
		t.Error("expected risk_paused to be true after SetRiskPaused(true)")
	}
	s.SetRiskPaused(false)
	if s.IsRiskPaused() {
		t.Error("expected risk_paused to be false after SetRiskPaused(false)")
	}

	s.BeginShutdown()
	if !s.IsShuttingDown() {
		t.Error("expected shutting_down to be true after BeginShutdown")
	}
	s.BeginShutdown() // idempotent
	if !s.IsShuttingDown() {
		t.Error("expected shutting_down to remain true")
	}
}

func TestComplement(t *testing.T) {
	t.Parallel()

	s := New("yes-token", "no-token", 0, 0)

	if no, ok := s.Complement("yes-token"); !ok || no != "no-token" {
		t.Errorf("Complement(yes-token) = (%q, %v), want (no-token, true)", no, ok)
	}
	if yes, ok := s.Complement("no-token"); !ok || yes != "yes-token" {
		t.Errorf("Complement(no-token) = (%q, %v), want (yes-token, true)", yes, ok)
	}
	if _, ok := s.Complement("unrelated-token"); ok {
		t.Error("expected Complement to report false for an untracked token")
	}
}

func TestSaveLoad_RoundTripsAndResetsTransientFlags(t *testing.T) {
	t.Parallel()

	s := New("yes-token", "no-token", 25, 50)
	s.InsertOrder(types.Order{ID: "o1", AssetID: "yes-token", Side: types.SELL, Price: 0.53, Size: 10})
	s.ApplyInventoryDelta("yes-token", 12.5)
	s.RecordPrice("yes-token", 0.48, 0.52, time.Now())
	s.SetRiskPaused(true)
	s.BeginShutdown()
	s.SetPosition(types.PositionRecord{TokenID: "yes-token", AvgEntryPrice: 0.40})

	path := filepath.Join(t.TempDir(), "state.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a non-nil restored state")
	}

	if loaded.IsRiskPaused() {
		t.Error("expected risk_paused to reset to false on load")
	}
	if loaded.IsShuttingDown() {
		t.Error("expected shutting_down to reset to false on load")
	}
	if got := loaded.Inventory("yes-token"); got != 12.5 {
		t.Errorf("Inventory after reload = %v, want 12.5", got)
	}
	if !loaded.HasOpenOrders("yes-token") {
		t.Error("expected the open order to survive the round trip")
	}
	if no, ok := loaded.Complement("yes-token"); !ok || no != "no-token" {
		t.Errorf("Complement after reload = (%q, %v), want (no-token, true)", no, ok)
	}
	if maxImb, maxPos := loaded.RiskLimits(); maxImb != 25 || maxPos != 50 {
		t.Errorf("RiskLimits after reload = (%v, %v), want (25, 50)", maxImb, maxPos)
	}
	snap := loaded.Snap()
	if snap.Positions["yes-token"].AvgEntryPrice != 0.40 {
		t.Errorf("Positions after reload = %+v, want avg_entry_price 0.40", snap.Positions["yes-token"])
	}
}

func TestLoad_MissingFileReturnsNilWithoutError(t *testing.T) {
	t.Parallel()

	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil state for a missing snapshot file, got %+v", s)
	}
}

package feed

import (
	"io"
	"log/slog"
	"testing"

	"polymm/internal/state"
	"polymm/pkg/types"
)

func newTestUser() (*User, *state.State) {
	st := state.New("yes-token", "no-token", 0, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUser(nil, "yes-token", st, nil, logger), st
}

func TestTracked(t *testing.T) {
	t.Parallel()

	u, _ := newTestUser()

	if !u.tracked("yes-token") {
		t.Error("expected the configured YES token to be tracked")
	}
	if !u.tracked("no-token") {
		t.Error("expected the complement NO token to be tracked")
	}
	if u.tracked("some-other-token") {
		t.Error("expected an unrelated token not to be tracked")
	}
}

func TestHandleTrade_BothLegsReconcileInventory(t *testing.T) {
	t.Parallel()

	u, st := newTestUser()

	u.handleTrade(types.WSTradeEvent{
		ID: "t1", AssetID: "yes-token", Side: "SELL", Size: "10", Price: "0.55", Status: "MATCHED",
	})
	u.handleTrade(types.WSTradeEvent{
		ID: "t2", AssetID: "no-token", Side: "SELL", Size: "10", Price: "0.45", Status: "MATCHED",
	})

	if got := st.Inventory("yes-token"); got != -10 {
		t.Errorf("yes-token inventory = %v, want -10", got)
	}
	if got := st.Inventory("no-token"); got != -10 {
		t.Errorf("no-token inventory = %v, want -10", got)
	}
}

func TestHandleTrade_IgnoresNonMatchedStatus(t *testing.T) {
	t.Parallel()

	u, st := newTestUser()

	u.handleTrade(types.WSTradeEvent{
		ID: "t1", AssetID: "yes-token", Side: "SELL", Size: "10", Price: "0.55", Status: "MINED",
	})

	if got := st.Inventory("yes-token"); got != 0 {
		t.Errorf("expected MINED status to be ignored, inventory = %v", got)
	}
}

func TestHandleTrade_IgnoresUntrackedToken(t *testing.T) {
	t.Parallel()

	u, st := newTestUser()

	u.handleTrade(types.WSTradeEvent{
		ID: "t1", AssetID: "unrelated-token", Side: "BUY", Size: "10", Price: "0.55", Status: "MATCHED",
	})

	if got := st.Inventory("unrelated-token"); got != 0 {
		t.Errorf("expected untracked token to be ignored entirely, inventory = %v", got)
	}
}

func TestHandleOrder_PlacementAndCancellationBothLegs(t *testing.T) {
	t.Parallel()

	u, st := newTestUser()

	u.handleOrder(types.WSOrderEvent{
		ID: "o1", AssetID: "no-token", Side: "SELL", Price: "0.45", OriginalSize: "10", Type: "PLACEMENT",
	})
	if !st.HasOpenOrders("no-token") {
		t.Fatal("expected the complement-leg order to be tracked as open")
	}

	u.handleOrder(types.WSOrderEvent{ID: "o1", AssetID: "no-token", Type: "CANCELLATION"})
	if st.HasOpenOrders("no-token") {
		t.Fatal("expected the order to be removed after cancellation")
	}
}

package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"polymm/internal/exchange"
	"polymm/pkg/types"
)

func newTestMarket() (*Market, chan types.MarketUpdate) {
	queue := make(chan types.MarketUpdate, 8)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMarket(exchange.NewMarketFeed("", logger), "yes-token", queue, logger)
	return m, queue
}

func TestMarket_BookEventBestIsLastElementAscending(t *testing.T) {
	t.Parallel()

	m, queue := newTestMarket()
	ctx := context.Background()

	m.book.ApplyBookEvent(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    []types.PriceLevel{{Price: "0.40"}, {Price: "0.45"}, {Price: "0.50"}},
		Sells:   []types.PriceLevel{{Price: "0.60"}, {Price: "0.55"}, {Price: "0.52"}},
	})
	bid, ask, ok := m.book.BestBidAsk()
	if !ok {
		t.Fatal("expected a best bid/ask after a book event")
	}
	m.push(ctx, bid, ask)

	select {
	case update := <-queue:
		if update.BestBid != 0.50 || update.BestAsk != 0.52 {
			t.Fatalf("got bid=%v ask=%v, want bid=0.50 ask=0.52", update.BestBid, update.BestAsk)
		}
	default:
		t.Fatal("expected a market update to be queued")
	}
}

func TestMarket_PushDropsMalformedUpdate(t *testing.T) {
	t.Parallel()

	m, queue := newTestMarket()
	m.push(context.Background(), 0.55, 0.50) // bid >= ask

	select {
	case update := <-queue:
		t.Fatalf("expected malformed update to be dropped, got %+v", update)
	default:
	}
}

func TestMarket_StaleBeforeAnyUpdate(t *testing.T) {
	t.Parallel()

	m, _ := newTestMarket()
	if !m.Stale(time.Second) {
		t.Error("expected a freshly-constructed market feed to report stale (no update yet)")
	}
}

func TestMarket_StaleFollowsBookUpdates(t *testing.T) {
	t.Parallel()

	m, _ := newTestMarket()
	m.book.ApplyBookEvent(types.WSBookEvent{
		AssetID: "yes-token",
		Buys:    []types.PriceLevel{{Price: "0.50"}},
		Sells:   []types.PriceLevel{{Price: "0.52"}},
	})

	if m.Stale(time.Minute) {
		t.Error("expected the market feed not to be stale right after a book update")
	}
	if !m.Stale(0) {
		t.Error("expected any nonzero elapsed time to exceed a zero staleness threshold")
	}
}

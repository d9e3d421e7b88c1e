// Package feed adapts the raw WebSocket event channels (internal/exchange)
// into the two data-carrying tasks of the trading core: the market feed,
// which normalizes book/price_change events into MarketUpdates on the
// market queue, and the user feed, which reconciles trade/order events
// directly into shared state.
package feed

import (
	"context"
	"log/slog"
	"time"

	"polymm/internal/exchange"
	"polymm/internal/market"
	"polymm/pkg/types"
)

// Market consumes one WSFeed's book and price_change events for a single
// configured YES token and normalizes them into MarketUpdates pushed onto
// the market queue. It never touches shared state directly. A market.Book
// mirrors the raw book so staleness can be queried independently of the
// market queue (see Stale).
type Market struct {
	ws       *exchange.WSFeed
	yesToken string
	book     *market.Book
	queue    chan<- types.MarketUpdate
	logger   *slog.Logger
}

// NewMarket creates a market feed task for the given YES token.
func NewMarket(ws *exchange.WSFeed, yesToken string, queue chan<- types.MarketUpdate, logger *slog.Logger) *Market {
	return &Market{
		ws:       ws,
		yesToken: yesToken,
		book:     market.NewBook(yesToken),
		queue:    queue,
		logger:   logger.With("component", "market_feed"),
	}
}

// Stale reports whether the book mirror hasn't received an update within
// maxAge — a dead WS feed (exchange outage, dropped connection) shows up
// here before it shows up as a missing MarketUpdate downstream.
func (m *Market) Stale(maxAge time.Duration) bool {
	return m.book.IsStale(maxAge)
}

// Run normalizes WS events into the market queue until ctx is cancelled.
// A full queue is allowed to block this task — per design, the market feed
// is the one task permitted to apply back-pressure to its own socket reads.
func (m *Market) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-m.ws.BookEvents():
			if !ok {
				return
			}
			if evt.AssetID != m.yesToken {
				continue
			}
			m.book.ApplyBookEvent(evt)
			bid, ask, ok := m.book.BestBidAsk()
			if !ok {
				continue
			}
			m.push(ctx, bid, ask)

		case evt, ok := <-m.ws.PriceChangeEvents():
			if !ok {
				return
			}
			for _, change := range evt.PriceChanges {
				if change.AssetID != m.yesToken {
					continue
				}
				bid := market.ParsePrice(change.BestBid)
				ask := market.ParsePrice(change.BestAsk)
				if bid <= 0 || ask <= 0 {
					continue
				}
				m.push(ctx, bid, ask)
			}
		}
	}
}

func (m *Market) push(ctx context.Context, bid, ask float64) {
	if bid <= 0 || ask <= 0 || bid >= ask {
		m.logger.Debug("dropping malformed market update", "best_bid", bid, "best_ask", ask)
		return
	}

	update := types.MarketUpdate{
		AssetID:  m.yesToken,
		BestBid:  bid,
		BestAsk:  ask,
		Received: time.Now(),
	}

	select {
	case m.queue <- update:
	case <-ctx.Done():
	}
}

// Package market provides local order book tracking and price parsing.
//
// Book mirrors the CLOB order book for the single configured YES token. It
// is updated from two sources:
//   - REST snapshots via ApplyBookResponse (initial load)
//   - WebSocket "book" events via ApplyBookEvent (full snapshots)
//
// Unlike a conventional order book, the exchange sends bids and asks sorted
// ascending by price in both cases — the best bid and best ask are each the
// *last* element of their list, not the first.
package market

import (
	"strconv"
	"sync"
	"time"

	"polymm/pkg/types"
)

// Book maintains a local mirror of the order book for one token.
type Book struct {
	mu      sync.RWMutex
	assetID string
	book    types.OrderBookSnapshot
	updated time.Time
}

// NewBook creates a new local order book mirror for a single token.
func NewBook(assetID string) *Book {
	return &Book{assetID: assetID}
}

// ApplyBookEvent replaces the book with a full snapshot from the market WS.
func (b *Book) ApplyBookEvent(event types.WSBookEvent) {
	b.applySnapshot(event.Buys, event.Sells, event.Hash)
}

// ApplyBookResponse applies a REST API book response.
func (b *Book) ApplyBookResponse(resp *types.BookResponse) {
	b.applySnapshot(resp.Bids, resp.Asks, resp.Hash)
}

func (b *Book) applySnapshot(bids, asks []types.PriceLevel, hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.book = types.OrderBookSnapshot{
		AssetID:   b.assetID,
		Bids:      bids,
		Asks:      asks,
		Hash:      hash,
		Timestamp: time.Now(),
	}
	b.updated = time.Now()
}

// MidPrice returns (bestBid + bestAsk) / 2, or false if either side is empty.
func (b *Book) MidPrice() (float64, bool) {
	bid, ask, ok := b.BestBidAsk()
	if !ok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// BestBidAsk returns the best bid and best ask: bids and asks both arrive
// sorted ascending by price, so the best of each is the last element.
func (b *Book) BestBidAsk() (bid, ask float64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.book.Bids) == 0 || len(b.book.Asks) == 0 {
		return 0, 0, false
	}

	return ParsePrice(b.book.Bids[len(b.book.Bids)-1].Price),
		ParsePrice(b.book.Asks[len(b.book.Asks)-1].Price), true
}

// IsStale returns true if the book hasn't been updated within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

// LastUpdated returns the timestamp of the last book update.
func (b *Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// ParsePrice parses a decimal price string, tolerating the leading-zero-
// omitted form the exchange sometimes sends (".42" meaning "0.42").
func ParsePrice(s string) float64 {
	if len(s) > 0 && s[0] == '.' {
		s = "0" + s
	} else if len(s) > 1 && s[0] == '-' && s[1] == '.' {
		s = "-0" + s[1:]
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

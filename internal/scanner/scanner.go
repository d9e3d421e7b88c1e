// Package scanner implements the negative-risk arbitrage scanner: the
// supplemented, read-only feature of SPEC_FULL §12. It shares no mutable
// state with the trading core beyond a REST client and a logger, and it
// never places an order — it only watches a family of mutually-exclusive
// YES tokens and logs when their price sum drifts far enough below 1 to
// imply a free-money arbitrage, mirroring the discovery-scanner's
// REST-polling-and-ranking shape for a report-only purpose instead of a
// trade-ranking one.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"polymm/internal/api"
	"polymm/internal/config"
	"polymm/internal/market"
)

// Task polls a configured family of condition IDs and logs when their YES
// token prices sum to materially less than 1.
type Task struct {
	http       *resty.Client
	cfg        config.ScannerConfig
	shutdownFn func() bool
	emit       api.Emitter
	logger     *slog.Logger
}

// New creates a negative-risk scanner task. shuttingDown is polled read-only
// between scan rounds so the scanner exits promptly without needing its own
// shared-state entry. emit may be nil when the dashboard is disabled.
func New(gammaBaseURL string, cfg config.ScannerConfig, shuttingDown func() bool, emit api.Emitter, logger *slog.Logger) *Task {
	return &Task{
		http: resty.New().
			SetBaseURL(gammaBaseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second),
		cfg:        cfg,
		shutdownFn: shuttingDown,
		emit:       emit,
		logger:     logger.With("component", "negrisk_scanner"),
	}
}

// conditionBook is the Gamma API's condition-level book summary: one row per
// outcome token, with a precomputed best bid/ask.
type conditionBook struct {
	ConditionID string  `json:"conditionId"`
	TokenID     string  `json:"tokenId"`
	BestBid     string  `json:"bestBid"`
	BestAsk     string  `json:"bestAsk"`
}

// Run polls every cfg.PollInterval until ctx is cancelled or shutting_down
// is observed.
func (t *Task) Run(ctx context.Context) {
	if len(t.cfg.ConditionIDs) == 0 {
		t.logger.Info("negative-risk scanner has no configured condition IDs, idling")
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.scanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.shutdownFn() {
				return
			}
			t.scanOnce(ctx)
		}
	}
}

func (t *Task) scanOnce(ctx context.Context) {
	for _, conditionID := range t.cfg.ConditionIDs {
		sum, err := t.priceSum(ctx, conditionID)
		if err != nil {
			t.logger.Error("negative-risk scan failed", "condition_id", conditionID, "error", err)
			continue
		}

		if sum < 1-t.cfg.Threshold {
			t.logger.Warn("negative-risk arbitrage opportunity detected",
				"condition_id", conditionID,
				"price_sum", sum,
				"threshold", t.cfg.Threshold,
			)
			t.emit.Emit("arbitrage", api.NewArbitrageEvent(conditionID, sum, t.cfg.Threshold))
		}
	}
}

// priceSum fetches the outcome-token books for a condition family and sums
// their YES best-ask prices — the cost of buying every outcome's YES token
// simultaneously. A sum materially below 1 means the full set of outcomes
// can be bought for less than the $1 it's guaranteed to redeem for.
func (t *Task) priceSum(ctx context.Context, conditionID string) (float64, error) {
	var rows []conditionBook
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParam("condition_id", conditionID).
		SetResult(&rows).
		Get("/neg-risk/books")
	if err != nil {
		return 0, fmt.Errorf("fetch condition books: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("fetch condition books: status %d", resp.StatusCode())
	}

	var sum float64
	for _, row := range rows {
		sum += market.ParsePrice(row.BestAsk)
	}
	return sum, nil
}

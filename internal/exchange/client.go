// Package exchange implements the Polymarket CLOB REST and WebSocket clients.
//
// The REST client (Client) talks to the Polymarket CLOB API for order management:
//   - GetOrderBook:       GET  /book               — fetch L2 book for a token
//   - PostOrders:         POST /orders              — batch-place up to 15 signed orders
//   - CancelOrders:       DELETE /orders            — cancel specific orders by ID
//   - CancelAll:          DELETE /cancel-all         — emergency cancel everything
//   - GetPositions:       GET  /positions           — bootstrap inventory from the exchange
//   - DeriveAPIKey:       GET  /auth/derive-api-key — bootstrap L2 creds from L1 wallet
//
// Order, cancel and book requests are rate-limited via per-category TokenBuckets.
// Order and cancel requests carry L2 HMAC headers; DeriveAPIKey uses L1 headers,
// and book and positions reads are unauthenticated.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	polymarket "github.com/GoPolymarket/polymarket-go-sdk"
	sdkauth "github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"

	"polymm/internal/config"
	"polymm/pkg/types"
)

// Client is the Polymarket CLOB REST API client.
// It wraps a resty HTTP client with rate limiting, retry, and auth. GTC order
// construction and signing is delegated to the polymarket-go-sdk's order
// builder rather than hand-assembled, so sdkBase/sdkSigner are kept alongside
// the resty client that still carries everything else (book reads, cancels,
// positions bootstrap, L2 derivation).
type Client struct {
	http      *resty.Client    // HTTP client with retry + base URL
	auth      *Auth            // L1/L2 auth provider for request signing
	rl        *RateLimiter     // per-endpoint-category rate limiting
	dryRun    bool             // when true, mutating methods return fake success without HTTP calls
	sdkBase   *polymarket.Client
	sdkSigner sdkauth.Signer
	logger    *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry, and a
// polymarket-go-sdk order signer derived from the same wallet key auth uses.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) (*Client, error) {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	sdkSigner, err := sdkauth.NewPrivateKeySigner(strings.TrimSpace(cfg.Wallet.PrivateKey), cfg.Wallet.ChainID)
	if err != nil {
		return nil, fmt.Errorf("create sdk order signer: %w", err)
	}

	return &Client{
		http:      httpClient,
		auth:      auth,
		rl:        NewRateLimiter(),
		dryRun:    cfg.DryRun,
		sdkBase:   polymarket.NewClient(),
		sdkSigner: sdkSigner,
		logger:    logger,
	}, nil
}

// sdkCLOB returns a clob.Client authenticated with whatever L2 credentials
// auth currently holds. Built fresh per call rather than cached because
// DeriveAPIKey may replace auth's credentials after NewClient runs.
func (c *Client) sdkCLOB() clob.Client {
	return c.sdkBase.CLOB.WithAuth(c.sdkSigner, &sdkauth.APIKey{
		Key:        c.auth.creds.ApiKey,
		Secret:     c.auth.creds.Secret,
		Passphrase: c.auth.creds.Passphrase,
	})
}

// GetOrderBook fetches the order book for a single token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// buildOrderPayload converts a high-level UserOrder into the on-chain
// SignedOrder + metadata the REST API expects. The order's EIP-712 signature
// and salt come from the polymarket-go-sdk's GTC order builder rather than
// being hand-assembled; maker/taker amounts still go through PriceToAmounts
// so the tick-precision math stays identical to what the rest of the package
// already relies on. TokenID must parse as a base-10 asset id — the CLOB
// rejects anything else, so this is caught before a signature is ever built.
func (c *Client) buildOrderPayload(ctx context.Context, order types.UserOrder) (types.OrderPayload, error) {
	if _, ok := new(big.Int).SetString(order.TokenID, 10); !ok {
		return types.OrderPayload{}, fmt.Errorf("build order payload: token id %q is not a valid numeric token id", order.TokenID)
	}

	tickSize := order.TickSize
	if tickSize == "" {
		tickSize = types.Tick001
	}
	makerAmt, takerAmt := PriceToAmounts(order.Price, order.Size, order.Side, tickSize)

	builder := clob.NewOrderBuilder(c.sdkCLOB(), c.sdkSigner).
		TokenID(order.TokenID).
		Side(string(order.Side)).
		Price(order.Price).
		AmountUSDC(order.Price * order.Size).
		Nonce(0).
		OrderType(clobtypes.OrderTypeGTC)

	signed, err := builder.BuildSignableWithContext(ctx)
	if err != nil {
		return types.OrderPayload{}, fmt.Errorf("sign order: %w", err)
	}

	return types.OrderPayload{
		Order: types.SignedOrder{
			Salt:          signed.Salt,
			Maker:         c.auth.FunderAddress().Hex(),
			Signer:        c.auth.Address().Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       order.TokenID,
			MakerAmount:   makerAmt,
			TakerAmount:   takerAmt,
			Side:          order.Side,
			Expiration:    fmt.Sprintf("%d", order.Expiration),
			Nonce:         "0",
			FeeRateBps:    fmt.Sprintf("%d", order.FeeRateBps),
			SignatureType: c.auth.sigType,
			Signature:     signed.Signature,
		},
		Owner:     c.auth.creds.ApiKey,
		OrderType: order.OrderType,
	}, nil
}

// PostOrders places up to 15 orders in a batch.
func (c *Client) PostOrders(ctx context.Context, orders []types.UserOrder, negRisk bool) ([]types.OrderResponse, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > 15 {
		return nil, fmt.Errorf("batch limit is 15 orders, got %d", len(orders))
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would post orders", "count", len(orders))
		results := make([]types.OrderResponse, len(orders))
		for i := range orders {
			results[i] = types.OrderResponse{Success: true, OrderID: fmt.Sprintf("dry-run-%d", i), Status: "live"}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payloads := make([]types.OrderPayload, len(orders))
	for i, order := range orders {
		payload, err := c.buildOrderPayload(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		payloads[i] = payload
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var results []types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payloads).
		SetResult(&results).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	return results, nil
}

// CancelOrders cancels multiple orders by ID.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error) {
	if len(orderIDs) == 0 {
		return &types.CancelResponse{}, nil
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel orders", "count", len(orderIDs))
		return &types.CancelResponse{Canceled: orderIDs}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	payload := struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: orderIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.auth.L2Headers("DELETE", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/orders")
	if err != nil {
		return nil, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelAll cancels every open order across all markets.
func (c *Client) CancelAll(ctx context.Context) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all orders")
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.L2Headers("DELETE", "/cancel-all", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Delete("/cancel-all")
	if err != nil {
		return nil, fmt.Errorf("cancel all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel all: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Warn("all orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// PositionEntry is a single record from the positions bootstrap endpoint.
// Field names mirror the REST response; richer than the asset/size pair the
// core invariants need, per SPEC_FULL §3's supplemented fields.
type PositionEntry struct {
	Asset         string  `json:"asset"`
	Size          string  `json:"size"`
	AvgPrice      string  `json:"avgPrice"`
	RealizedPnl   string  `json:"realizedPnl"`
	CurPrice      string  `json:"curPrice"`
	OppositeAsset bool    `json:"oppositeAsset"`
}

// GetPositions fetches the bootstrap position snapshot for a wallet/market
// pair: GET /positions?user=<wallet>&market=<condition>. Used once at
// startup to seed inventory before the user feed takes over.
func (c *Client) GetPositions(ctx context.Context, wallet, conditionID string) ([]PositionEntry, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result []PositionEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"user": wallet, "market": conditionID}).
		SetResult(&result).
		Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get positions: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// DeriveAPIKey derives L2 API credentials via L1 authentication.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}

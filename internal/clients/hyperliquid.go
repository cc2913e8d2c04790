// Package clients holds the thin typed wrappers over the remote ledger
// and market data endpoints.
package clients

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"walletwatch/internal/domain"
	"walletwatch/internal/httpx"
)

// DefaultInfoURL is the public Hyperliquid info endpoint.
const DefaultInfoURL = "https://api.hyperliquid.xyz/info"

type clearinghouseRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
	Dex  string `json:"dex"`
}

// MarginSummary is the account-level margin block of the clearinghouse
// state. Numbers arrive as strings on the wire.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// RawLeverage wraps the nested leverage object of a raw position.
type RawLeverage struct {
	Value json.Number `json:"value"`
}

// RawPosition is one open position as reported by the upstream ledger.
type RawPosition struct {
	Coin          string      `json:"coin"`
	Szi           string      `json:"szi"`
	EntryPx       string      `json:"entryPx"`
	LiquidationPx string      `json:"liquidationPx"`
	UnrealizedPnl string      `json:"unrealizedPnl"`
	MarginUsed    string      `json:"marginUsed"`
	Leverage      RawLeverage `json:"leverage"`
}

// AssetPosition wraps a raw position the way the upstream nests it.
type AssetPosition struct {
	Position RawPosition `json:"position"`
}

// ClearinghouseState is the full account state response.
type ClearinghouseState struct {
	MarginSummary  MarginSummary   `json:"marginSummary"`
	AssetPositions []AssetPosition `json:"assetPositions"`
}

// HyperliquidClient fetches the clearinghouse state of a single account.
type HyperliquidClient struct {
	http       *httpx.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// NewHyperliquidClient creates a client for the given info endpoint.
func NewHyperliquidClient(http *httpx.Client, baseURL string, timeout time.Duration, maxRetries int) *HyperliquidClient {
	if baseURL == "" {
		baseURL = DefaultInfoURL
	}
	return &HyperliquidClient{
		http:       http,
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// ClearinghouseState fetches the current account state for user.
func (c *HyperliquidClient) ClearinghouseState(ctx context.Context, user string) (*ClearinghouseState, error) {
	req := clearinghouseRequest{Type: "clearinghouseState", User: user, Dex: ""}

	body, err := c.http.Post(ctx, c.baseURL, req, c.timeout, c.maxRetries)
	if err != nil {
		return nil, errors.Wrap(err, "fetch clearinghouse state")
	}

	var state ClearinghouseState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, errors.Wrap(err, "decode clearinghouse state")
	}

	if state.MarginSummary == (MarginSummary{}) && len(state.AssetPositions) == 0 {
		return nil, errors.Wrap(httpx.ErrDataUnavailable, "clearinghouse state carries no margin summary")
	}

	return &state, nil
}

// Snapshot converts the raw asset positions into numeric summaries keyed
// by coin. Unparseable sizes default to zero, mirroring the tolerant
// handling of partial upstream data.
func (s *ClearinghouseState) Snapshot() domain.Snapshot {
	snap := make(domain.Snapshot, len(s.AssetPositions))
	for _, wrapper := range s.AssetPositions {
		pos := wrapper.Position
		if pos.Coin == "" {
			continue
		}

		size := decimal.Zero
		if v := parseDecimal(pos.Szi); v != nil {
			size = *v
		}
		unrealized := decimal.Zero
		if v := parseDecimal(pos.UnrealizedPnl); v != nil {
			unrealized = *v
		}
		entry := parseDecimal(pos.EntryPx)
		leverage := parseDecimal(pos.Leverage.Value.String())

		snap[pos.Coin] = domain.NewPositionSummary(size, entry, unrealized, leverage)
	}
	return snap
}

// TotalPortfolioValue prefers the authoritative totalRawUsd field and
// falls back to summing the notional values of the known positions when
// the field is absent or zero.
func (s *ClearinghouseState) TotalPortfolioValue(snap domain.Snapshot) decimal.Decimal {
	if v := parseDecimal(s.MarginSummary.TotalRawUsd); v != nil && !v.IsZero() {
		return *v
	}
	return snap.TotalValue()
}

func parseDecimal(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &v
}

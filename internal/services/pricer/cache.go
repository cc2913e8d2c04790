// Package pricer maintains the time-windowed market price cache and
// enriches coins with current prices and per-window change context.
package pricer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletwatch/internal/httpx"
	"walletwatch/pkg/warnonce"
)

const (
	// DefaultBaseURL is the public market data API root.
	DefaultBaseURL = "https://api.binance.com/api/v3"

	// defaultQuoteSuffix is appended to bare coin names when resolving
	// a tradable symbol.
	defaultQuoteSuffix = "USDT"

	bulkTickerPath = "/ticker/price"
)

// Cache holds a TTL-bounded snapshot of all tradable symbol prices.
// Staleness is preferred over unavailability: a failed refresh serves
// the previous mapping. The TTL only ever grows, extended when the
// upstream signals distress.
type Cache struct {
	client     *httpx.Client
	logger     *zap.Logger
	dedup      *warnonce.Deduper
	baseURL    string
	timeout    time.Duration
	maxRetries int

	ttl        time.Duration
	capturedAt time.Time
	prices     map[string]decimal.Decimal

	now func() time.Time
}

// NewCache creates the price cache and registers it as the client's
// throttle listener so ban windows and teapot responses feed back into
// the TTL.
func NewCache(client *httpx.Client, logger *zap.Logger, dedup *warnonce.Deduper, baseURL string, ttl time.Duration, timeout time.Duration, maxRetries int) *Cache {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Cache{
		client:     client,
		logger:     logger,
		dedup:      dedup,
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		ttl:        ttl,
		prices:     make(map[string]decimal.Decimal),
		now:        time.Now,
	}
	client.SetThrottleListener(c)

	return c
}

// ExtendTTL implements httpx.ThrottleListener. The TTL is monotonically
// extended, never reduced.
func (c *Cache) ExtendTTL(d time.Duration) {
	if d <= c.ttl {
		return
	}
	c.logger.Warn("extending price cache ttl",
		zap.Duration("from", c.ttl),
		zap.Duration("to", d))
	c.ttl = d
}

// MarkFresh implements httpx.ThrottleListener. It makes the current
// snapshot count as just captured so expiry does not trigger more calls
// while the upstream is throttling.
func (c *Cache) MarkFresh() {
	c.capturedAt = c.now()
}

// AllPrices returns the symbol to price mapping, served from cache while
// it is fresh. On refresh failure the stale mapping is returned; the
// call never fails.
func (c *Cache) AllPrices(ctx context.Context, forceRefresh bool) map[string]decimal.Decimal {
	if !forceRefresh && c.now().Sub(c.capturedAt) < c.ttl {
		return c.prices
	}

	body, err := c.client.Get(ctx, c.baseURL+bulkTickerPath, nil, c.timeout, c.maxRetries)
	if err != nil {
		if c.dedup.Allow("ticker_pull_failed") {
			c.logger.Warn("bulk ticker refresh failed, serving stale prices",
				zap.Error(err),
				zap.Int("cached_symbols", len(c.prices)))
		}
		return c.prices
	}

	var rows []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		if c.dedup.Allow("ticker_decode_failed") {
			c.logger.Warn("bulk ticker payload malformed, serving stale prices", zap.Error(err))
		}
		return c.prices
	}

	mapping := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		if row.Symbol == "" {
			continue
		}
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			continue
		}
		mapping[strings.ToUpper(row.Symbol)] = price
	}

	c.prices = mapping
	c.capturedAt = c.now()

	return c.prices
}

// ResolveSymbol maps a human-supplied coin identifier to a tradable
// symbol known to the cache. Identifiers with non-alphanumeric
// characters (wallet addresses and the like) are rejected. On a cache
// miss one forced refresh is attempted before giving up.
func (c *Cache) ResolveSymbol(ctx context.Context, coin string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(coin))
	normalized = strings.NewReplacer("/", "", "-", "").Replace(normalized)
	if normalized == "" {
		return "", false
	}

	if !isAlphanumeric(normalized) {
		if c.dedup.Allow("invalid_symbol:" + normalized) {
			c.logger.Warn("coin identifier contains invalid characters, skipping",
				zap.String("coin", coin))
		}
		return "", false
	}

	candidate := normalized
	if !strings.HasSuffix(candidate, defaultQuoteSuffix) {
		// avoid resolving the quote currency against itself
		if candidate == defaultQuoteSuffix {
			return "", false
		}
		candidate += defaultQuoteSuffix
	}

	if _, ok := c.AllPrices(ctx, false)[candidate]; ok {
		return candidate, true
	}
	if _, ok := c.AllPrices(ctx, true)[candidate]; ok {
		return candidate, true
	}

	if c.dedup.Allow("symbol_not_found:" + candidate) {
		c.logger.Warn("no tradable symbol found for coin",
			zap.String("coin", coin),
			zap.String("candidate", candidate))
	}
	return "", false
}

// Price returns the cached price for a symbol without forcing a refresh.
func (c *Cache) Price(ctx context.Context, symbol string) *decimal.Decimal {
	if price, ok := c.AllPrices(ctx, false)[symbol]; ok {
		return &price
	}
	return nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

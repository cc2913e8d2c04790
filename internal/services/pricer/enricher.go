package pricer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"walletwatch/internal/domain"
	"walletwatch/internal/httpx"
)

// Windows are the fixed lookback durations used for short-term price
// change indicators.
var Windows = []string{"5m", "15m", "1h", "4h", "1d"}

const klinesPath = "/klines"

// Enricher resolves a coin to its market context: current price from the
// bulk cache and a historical close per lookback window.
type Enricher struct {
	cache      *Cache
	client     *httpx.Client
	logger     *zap.Logger
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// NewEnricher creates an Enricher on top of the shared cache and client.
func NewEnricher(cache *Cache, client *httpx.Client, logger *zap.Logger, baseURL string, timeout time.Duration, maxRetries int) *Enricher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Enricher{
		cache:      cache,
		client:     client,
		logger:     logger,
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// FetchContext gathers the price context for a coin. Every failure
// degrades to nil entries; the call itself never fails.
func (e *Enricher) FetchContext(ctx context.Context, coin string) domain.PriceContext {
	out := domain.PriceContext{Closes: make(map[string]*decimal.Decimal, len(Windows))}
	for _, window := range Windows {
		out.Closes[window] = nil
	}

	symbol, ok := e.cache.ResolveSymbol(ctx, coin)
	if !ok {
		return out
	}

	// the current price comes from the bulk snapshot, not a per-symbol call
	out.Current = e.cache.Price(ctx, symbol)

	for _, window := range Windows {
		out.Closes[window] = e.pastClose(ctx, symbol, window)
	}

	return out
}

// pastClose fetches the two most recent candles for the window and
// returns the next-to-last close as the "past" reference. There is no
// bulk history endpoint upstream, so this is a per-symbol request.
func (e *Enricher) pastClose(ctx context.Context, symbol, interval string) *decimal.Decimal {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {"2"},
	}

	body, err := e.client.Get(ctx, e.baseURL+klinesPath, params, e.timeout, e.maxRetries)
	if err != nil {
		e.logger.Debug("kline fetch failed",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Error(err))
		return nil
	}

	candles := gjson.ParseBytes(body).Array()
	if len(candles) < 2 {
		return nil
	}

	// index 4 of a candle is the closing price
	raw := candles[len(candles)-2].Get("4").String()
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}

	return &price
}

// ComputeWindowChange derives the ROI movement over one window from the
// entry price, the current price and the window's past close. The result
// is undefined when any input is missing or the entry price is zero.
func ComputeWindowChange(entry, current, pastClose *decimal.Decimal, leverage *decimal.Decimal) (domain.WindowChange, bool) {
	if entry == nil || current == nil || pastClose == nil || entry.IsZero() {
		return domain.WindowChange{}, false
	}

	unNow := current.Sub(*entry).Div(*entry)
	unPast := pastClose.Sub(*entry).Div(*entry)
	delta := unNow.Sub(unPast)

	lev := decimal.NewFromInt(1)
	if leverage != nil && !leverage.IsZero() {
		lev = *leverage
	}

	return domain.WindowChange{
		UnleveragedNow:  unNow,
		UnleveragedPast: unPast,
		Delta:           delta,
		LeveragedNow:    unNow.Mul(lev),
		LeveragedDelta:  delta.Mul(lev),
	}, true
}

// indicator bucket thresholds in percent; part of the output contract
var bucketThresholds = []decimal.Decimal{
	decimal.NewFromFloat(2.0),
	decimal.NewFromFloat(1.0),
	decimal.NewFromFloat(0.2),
	decimal.NewFromFloat(0.01),
}

// FormatChangeIndicator renders a fractional change as 0-4 repeated
// directional glyphs plus the percentage. Magnitude buckets sit at
// 0.01%, 0.2%, 1.0% and 2.0%; the sign (including exact zero) selects
// the glyph.
func FormatChangeIndicator(change *decimal.Decimal) string {
	if change == nil {
		return "N/A"
	}

	pctAbs := change.Abs().Mul(decimal.NewFromInt(100))
	icons := 0
	for i, threshold := range bucketThresholds {
		if pctAbs.GreaterThanOrEqual(threshold) {
			icons = len(bucketThresholds) - i
			break
		}
	}

	arrow, sign := "—", ""
	switch {
	case change.IsPositive():
		arrow, sign = "▲", "+"
	case change.IsNegative():
		arrow, sign = "▼", "-"
	}

	iconStr := "—"
	if icons > 0 {
		iconStr = strings.Repeat(arrow, icons)
	}

	return fmt.Sprintf("%s %s%s%%", iconStr, sign, pctAbs.StringFixed(2))
}

// WindowDelta returns the fractional price change between the window's
// past close and the current price, nil when either is missing.
func WindowDelta(current, pastClose *decimal.Decimal) *decimal.Decimal {
	if current == nil || pastClose == nil || pastClose.IsZero() {
		return nil
	}
	d := current.Sub(*pastClose).Div(*pastClose)
	return &d
}

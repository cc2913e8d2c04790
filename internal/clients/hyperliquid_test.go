package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walletwatch/internal/httpx"
	"walletwatch/pkg/warnonce"
)

const stateFixture = `{
	"marginSummary": {
		"accountValue": "1250.5",
		"totalNtlPos": "900.0",
		"totalRawUsd": "1250.5",
		"totalMarginUsed": "120.0"
	},
	"assetPositions": [
		{"position": {
			"coin": "BTC",
			"szi": "0.5",
			"entryPx": "50000",
			"unrealizedPnl": "250",
			"marginUsed": "100",
			"leverage": {"type": "cross", "value": 5}
		}},
		{"position": {
			"coin": "ETH",
			"szi": "-2",
			"entryPx": "3000",
			"unrealizedPnl": "-60",
			"marginUsed": "20",
			"leverage": {"type": "isolated", "value": 3}
		}}
	]
}`

type fakeTransport struct {
	responses []*http.Response
	requests  []*http.Request
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, transport *fakeTransport) *HyperliquidClient {
	t.Helper()

	dedup := warnonce.New()
	dedup.Begin(1)

	hc := httpx.New(zap.NewNop(), dedup,
		httpx.WithHTTPClient(&http.Client{Transport: transport}),
		httpx.WithSleep(func(time.Duration) {}))

	return NewHyperliquidClient(hc, "http://x/info", time.Second, 1)
}

func TestClearinghouseStateRequestAndDecode(t *testing.T) {
	transport := &fakeTransport{responses: []*http.Response{response(200, stateFixture)}}
	c := newTestClient(t, transport)

	state, err := c.ClearinghouseState(context.Background(), "0xabc")
	require.NoError(t, err)

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	require.Equal(t, http.MethodPost, req.Method)

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var sent map[string]string
	require.NoError(t, json.Unmarshal(raw, &sent))
	require.Equal(t, "clearinghouseState", sent["type"])
	require.Equal(t, "0xabc", sent["user"])

	require.Equal(t, "1250.5", state.MarginSummary.AccountValue)
	require.Len(t, state.AssetPositions, 2)
	require.Equal(t, "BTC", state.AssetPositions[0].Position.Coin)
}

func TestClearinghouseStateEmptyResponse(t *testing.T) {
	transport := &fakeTransport{responses: []*http.Response{response(200, `{}`)}}
	c := newTestClient(t, transport)

	_, err := c.ClearinghouseState(context.Background(), "0xabc")
	require.ErrorIs(t, errors.Cause(err), httpx.ErrDataUnavailable)
}

func TestSnapshot(t *testing.T) {
	var state ClearinghouseState
	require.NoError(t, json.Unmarshal([]byte(stateFixture), &state))

	snap := state.Snapshot()
	require.Len(t, snap, 2)

	btc := snap["BTC"]
	require.True(t, btc.Size.Equal(decimal.RequireFromString("0.5")))
	require.NotNil(t, btc.Entry)
	require.True(t, btc.Entry.Equal(decimal.RequireFromString("50000")))
	require.True(t, btc.Value.Equal(decimal.RequireFromString("25000")))
	require.True(t, btc.Unrealized.Equal(decimal.RequireFromString("250")))
	require.NotNil(t, btc.ROI)
	require.True(t, btc.ROI.Equal(decimal.RequireFromString("0.01")))
	require.NotNil(t, btc.Leverage)
	require.True(t, btc.Leverage.Equal(decimal.RequireFromString("5")))

	eth := snap["ETH"]
	require.True(t, eth.Size.Equal(decimal.RequireFromString("-2")))
	// value is the absolute notional
	require.True(t, eth.Value.Equal(decimal.RequireFromString("6000")))
}

func TestSnapshotTolerantOfPartialData(t *testing.T) {
	state := ClearinghouseState{AssetPositions: []AssetPosition{
		{Position: RawPosition{Coin: "XYZ", Szi: "not-a-number", EntryPx: ""}},
		{Position: RawPosition{Coin: ""}},
	}}

	snap := state.Snapshot()
	require.Len(t, snap, 1)
	require.True(t, snap["XYZ"].Size.IsZero())
	require.Nil(t, snap["XYZ"].Entry)
}

func TestTotalPortfolioValue(t *testing.T) {
	var state ClearinghouseState
	require.NoError(t, json.Unmarshal([]byte(stateFixture), &state))
	snap := state.Snapshot()

	// the authoritative field wins when present
	require.True(t, state.TotalPortfolioValue(snap).Equal(decimal.RequireFromString("1250.5")))

	state.MarginSummary.TotalRawUsd = "0"
	// falls back to the notional sum: 25000 + 6000
	require.True(t, state.TotalPortfolioValue(snap).Equal(decimal.RequireFromString("31000")))
}

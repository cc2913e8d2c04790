// Package httpx implements the rate-limit aware HTTP access layer shared
// by the account state and market data sources. A client keeps a local
// ban window: once the upstream declares an IP ban, outbound requests are
// suppressed without a network call until the window expires.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"walletwatch/pkg/warnonce"
)

const (
	userAgent = "Mozilla/5.0 (compatible; walletwatch/1.0)"

	// rateLimitCode is the upstream error code signalling that request
	// weight was exceeded and the IP is banned.
	rateLimitCode = -1003

	teapotMinSleep = 10 * time.Second

	banSnippetLimit    = 800
	statusSnippetLimit = 200
)

// banTimestampRe matches the unix epoch timestamp embedded in the ban
// message, e.g. "... IP banned until 1761372281648."
var banTimestampRe = regexp.MustCompile(`\d{10,13}`)

// ThrottleListener lets the price cache react to upstream throttling
// detected at the transport layer.
type ThrottleListener interface {
	// ExtendTTL grows the cache TTL to at least d.
	ExtendTTL(d time.Duration)
	// MarkFresh makes the cache treat its snapshot as just captured.
	MarkFresh()
}

// Client issues GET and POST requests with exponential backoff and a
// local ban window. It is used from a single poll flow and is not safe
// for concurrent use.
type Client struct {
	hc       *http.Client
	logger   *zap.Logger
	dedup    *warnonce.Deduper
	listener ThrottleListener

	banUntil time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSleep replaces the backoff sleep function.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// New creates a Client. The deduper suppresses repeated log lines within
// one poll iteration.
func New(logger *zap.Logger, dedup *warnonce.Deduper, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{},
		logger: logger,
		dedup:  dedup,
		now:    time.Now,
		sleep:  time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetThrottleListener registers the listener notified on ban detection
// and teapot responses.
func (c *Client) SetThrottleListener(l ThrottleListener) {
	c.listener = l
}

// BanRemaining returns how long the local ban window is still active,
// zero when no ban is in effect.
func (c *Client) BanRemaining() time.Duration {
	if remain := c.banUntil.Sub(c.now()); remain > 0 {
		return remain
	}
	return 0
}

// Get issues a GET request with query params. It returns the response
// body on HTTP 200 and a taxonomy error otherwise. maxRetries bounds the
// total number of attempts.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, timeout time.Duration, maxRetries int) ([]byte, error) {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	return c.do(ctx, http.MethodGet, rawURL, nil, timeout, maxRetries)
}

// Post issues a POST request with a JSON body. Same semantics as Get.
func (c *Client) Post(ctx context.Context, rawURL string, body any, timeout time.Duration, maxRetries int) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request body")
	}

	return c.do(ctx, http.MethodPost, rawURL, payload, timeout, maxRetries)
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte, timeout time.Duration, maxRetries int) ([]byte, error) {
	if remain := c.BanRemaining(); remain > 0 {
		if c.dedup.Allow("ban_skip") {
			c.logger.Warn("upstream ban active, skipping request",
				zap.String("url", rawURL),
				zap.Duration("remaining", remain))
		}
		return nil, &BanError{Remaining: remain}
	}

	bo := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Minute,
		Factor: 2,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		body, status, err := c.roundTrip(ctx, method, rawURL, payload, timeout)
		if err != nil {
			lastErr = err
			c.logger.Warn("request failed", zap.String("url", rawURL), zap.Error(err))
			c.sleep(bo.Duration())
			continue
		}

		if status == http.StatusOK {
			return body, nil
		}

		if banErr, ok := c.detectBan(body); ok {
			return nil, banErr
		}

		switch {
		case status == http.StatusTeapot:
			c.logger.Warn("teapot throttle response",
				zap.String("url", rawURL),
				zap.String("body", snippet(body, banSnippetLimit)))
			if c.listener != nil {
				c.listener.MarkFresh()
			}
			d := bo.Duration()
			if d < teapotMinSleep {
				d = teapotMinSleep
			}
			lastErr = &StatusError{Code: status}
			c.sleep(d)
		case status == http.StatusTooManyRequests || (status >= 500 && status < 600):
			c.logger.Warn("retryable http status",
				zap.String("url", rawURL),
				zap.Int("status", status))
			lastErr = &StatusError{Code: status}
			c.sleep(bo.Duration())
		default:
			c.logger.Warn("unexpected http status",
				zap.String("url", rawURL),
				zap.Int("status", status),
				zap.String("body", snippet(body, statusSnippetLimit)))
			return nil, &StatusError{Code: status}
		}
	}

	if lastErr != nil {
		return nil, errors.Wrap(ErrExhausted, lastErr.Error())
	}
	return nil, ErrExhausted
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, payload []byte, timeout time.Duration) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "transport")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read response body")
	}

	return body, resp.StatusCode, nil
}

// detectBan inspects a non-200 payload for the upstream rate-limit error
// code. On detection it arms the local ban window from the epoch
// millisecond timestamp embedded in the message and extends the price
// cache TTL to outlast the ban.
func (c *Client) detectBan(body []byte) (*BanError, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	if gjson.GetBytes(body, "code").Int() != rateLimitCode {
		return nil, false
	}

	msg := gjson.GetBytes(body, "msg").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "message").String()
	}

	match := banTimestampRe.FindString(msg)
	if match == "" {
		return nil, false
	}
	millis, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return nil, false
	}

	c.banUntil = time.UnixMilli(millis)
	remain := c.banUntil.Sub(c.now())
	if remain < 0 {
		remain = 0
	}

	if c.listener != nil {
		c.listener.ExtendTTL(remain + time.Minute)
	}

	c.logger.Error("upstream rate limit ban detected",
		zap.Time("until", c.banUntil),
		zap.Duration("remaining", remain))

	return &BanError{}, true
}

func snippet(body []byte, limit int) string {
	if len(body) > limit {
		body = body[:limit]
	}
	return string(body)
}

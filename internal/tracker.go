package internal

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletwatch/config"
	"walletwatch/internal/clients"
	"walletwatch/internal/domain"
	"walletwatch/internal/httpx"
	"walletwatch/internal/render"
	"walletwatch/internal/services/diff"
	"walletwatch/internal/services/notifier"
	"walletwatch/internal/services/pricer"
	"walletwatch/internal/storage/history"
	"walletwatch/pkg/warnonce"
)

// Tracker polls the clearinghouse state of one account, diffs positions
// against the previous iteration, enriches detected changes with market
// prices and dispatches notifications. Iterations run strictly
// sequentially; all mutable state below is touched from this one flow.
type Tracker struct {
	cfg    config.Config
	logger *zap.Logger

	account    *clients.HyperliquidClient
	cache      *pricer.Cache
	enricher   *pricer.Enricher
	dispatcher *notifier.Dispatcher
	history    *history.WALStore
	console    *render.Console
	dedup      *warnonce.Deduper

	// previous is the diff baseline; replaced only after a successful
	// iteration so a failed poll never erases the last known-good state.
	previous    domain.Snapshot
	iteration   uint64
	lastSuccess time.Time
}

// NewTracker wires the full pipeline from config.
func NewTracker(cfg config.Config, logger *zap.Logger) (*Tracker, error) {
	dedup := warnonce.New()

	// the price subsystem shares one client so its ban window is global
	// to all price requests; the ledger endpoint gets its own client
	accountHTTP := httpx.New(logger.Named("ledger"), dedup)
	priceHTTP := httpx.New(logger.Named("market"), dedup)

	cache := pricer.NewCache(priceHTTP, logger, dedup, cfg.PriceAPI, cfg.PriceCacheTTL, cfg.RequestTimeout, cfg.MaxRetries)
	enricher := pricer.NewEnricher(cache, priceHTTP, logger, cfg.PriceAPI, cfg.RequestTimeout, cfg.MaxRetries)

	hist, err := history.NewWALStore(cfg.HistoryDir)
	if err != nil {
		return nil, errors.Wrap(err, "open change history")
	}

	dispatcher := notifier.NewDispatcher(
		hist,
		notifier.NewSMTPNotifier(cfg.SMTP, logger),
		enricher,
		logger,
		dedup,
		cfg.Target,
	)

	return &Tracker{
		cfg:        cfg,
		logger:     logger,
		account:    clients.NewHyperliquidClient(accountHTTP, cfg.InfoAPI, cfg.AccountTimeout, cfg.AccountRetries),
		cache:      cache,
		enricher:   enricher,
		dispatcher: dispatcher,
		history:    hist,
		console:    render.NewConsole(os.Stdout, cfg.Target),
		dedup:      dedup,
	}, nil
}

// Close releases the history store.
func (t *Tracker) Close() error {
	return t.history.Close()
}

// Run executes the poll loop until ctx is cancelled. One iteration runs
// to completion before the next is scheduled; a slow upstream delays the
// schedule rather than overlapping iterations.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("starting position tracker",
		zap.String("target", t.cfg.Target),
		zap.Duration("poll_interval", t.cfg.PollInterval))

	t.runOnce(ctx)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("context done, stopping tracker")
			return ctx.Err()
		case <-ticker.C:
			t.runOnce(ctx)
		}
	}
}

// runOnce advances the iteration counter and executes one observation
// under a catch-all so no failure can terminate the poll loop.
func (t *Tracker) runOnce(ctx context.Context) {
	t.iteration++
	t.dedup.Begin(t.iteration)

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("iteration panicked",
				zap.Uint64("iteration", t.iteration),
				zap.Any("panic", r))
		}
	}()

	if err := t.observe(ctx); err != nil {
		t.logger.Error("iteration failed",
			zap.Uint64("iteration", t.iteration),
			zap.Error(err))
	}
}

func (t *Tracker) observe(ctx context.Context) error {
	state, err := t.account.ClearinghouseState(ctx, t.cfg.Target)
	if err != nil {
		// previous snapshot is kept as the baseline for the next diff
		return errors.Wrap(err, "fetch account state")
	}

	snapshot := state.Snapshot()
	total := state.TotalPortfolioValue(snapshot)

	changes := diff.Diff(t.previous, snapshot, total, t.iteration)
	if !changes.Empty() {
		t.logger.Info("position changes detected",
			zap.Uint64("iteration", t.iteration),
			zap.Int("added", len(changes.Added)),
			zap.Int("removed", len(changes.Removed)),
			zap.Int("modified", len(changes.Modified)))
		t.dispatcher.Dispatch(ctx, t.iteration, changes, total)
	}

	contexts := make(map[string]domain.PriceContext, len(snapshot))
	for _, coin := range snapshot.Coins() {
		contexts[coin] = t.enricher.FetchContext(ctx, coin)
	}

	recent, err := t.history.Last(3)
	if err != nil && t.dedup.Allow("history_read_failed") {
		t.logger.Warn("failed to read change history", zap.Error(err))
	}

	t.previous = snapshot
	t.lastSuccess = time.Now()

	t.console.Render(render.View{
		Iteration:       t.iteration,
		Now:             time.Now(),
		LastSuccess:     t.lastSuccess,
		AccountValue:    parseSummaryField(state.MarginSummary.AccountValue),
		TotalNtlPos:     parseSummaryField(state.MarginSummary.TotalNtlPos),
		TotalRawUsd:     parseSummaryField(state.MarginSummary.TotalRawUsd),
		TotalMarginUsed: parseSummaryField(state.MarginSummary.TotalMarginUsed),
		Positions:       snapshot,
		Contexts:        contexts,
		Changes:         changes,
		History:         recent,
	})

	return nil
}

func parseSummaryField(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &v
}

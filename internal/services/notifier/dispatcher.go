package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletwatch/internal/domain"
	"walletwatch/internal/services/pricer"
	"walletwatch/pkg/warnonce"
)

// PriceContextFetcher supplies market context for changed coins.
type PriceContextFetcher interface {
	FetchContext(ctx context.Context, coin string) domain.PriceContext
}

// Dispatcher builds the human-readable change report and hands it to the
// audit sink and the notify sink. The audit write happens first so a
// delivery failure never loses the trail; failures on either path are
// logged and swallowed.
type Dispatcher struct {
	audit    AuditSink
	notifier Notifier
	prices   PriceContextFetcher
	logger   *zap.Logger
	dedup    *warnonce.Deduper
	target   string

	now func() time.Time
}

// NewDispatcher wires the dispatcher to its sinks.
func NewDispatcher(audit AuditSink, n Notifier, prices PriceContextFetcher, logger *zap.Logger, dedup *warnonce.Deduper, target string) *Dispatcher {
	return &Dispatcher{
		audit:    audit,
		notifier: n,
		prices:   prices,
		logger:   logger,
		dedup:    dedup,
		target:   target,
		now:      time.Now,
	}
}

// Dispatch records and delivers the change report for one iteration.
// The baseline iteration and empty change sets are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, iteration uint64, changes domain.ChangeSet, totalPortfolioValue decimal.Decimal) {
	if changes.Empty() || iteration <= 1 {
		return
	}

	subject := fmt.Sprintf("[walletwatch] positions changed for account %s", d.target)
	body := d.buildReport(ctx, changes, totalPortfolioValue)

	rec := domain.AuditRecord{
		Timestamp: d.now(),
		Iteration: iteration,
		Subject:   subject,
		Body:      body,
	}
	if err := d.audit.Append(rec); err != nil {
		if d.dedup.Allow("history_write_failed") {
			d.logger.Warn("failed to append audit record", zap.Error(err))
		}
	}

	if err := d.notifier.Notify(subject, body); err != nil {
		d.logger.Error("failed to deliver notification", zap.Error(err))
	}
}

func (d *Dispatcher) buildReport(ctx context.Context, changes domain.ChangeSet, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position change notice - account: %s\n", d.target)
	fmt.Fprintf(&b, "Total portfolio value (USD): %s\n\n", total.StringFixed(1))

	d.writeSection(ctx, &b, "Added positions:", changes.Added)
	d.writeSection(ctx, &b, "Removed positions:", changes.Removed)
	d.writeSection(ctx, &b, "Modified positions:", changes.Modified)

	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) writeSection(ctx context.Context, b *strings.Builder, title string, records []domain.ChangeRecord) {
	if len(records) == 0 {
		return
	}

	b.WriteString(title + "\n")
	for _, rec := range records {
		d.writeRecord(ctx, b, rec)
	}
	b.WriteString("\n")
}

func (d *Dispatcher) writeRecord(ctx context.Context, b *strings.Builder, rec domain.ChangeRecord) {
	fmt.Fprintf(b, "  %s:\n", rec.Coin)

	if rec.Previous != nil {
		fmt.Fprintf(b, "    before: size=%s, value=%s, roi=%s\n",
			rec.Previous.Size, rec.Previous.Value.StringFixed(1), formatROI(rec.Previous.ROI))
	}
	if rec.Current != nil {
		fmt.Fprintf(b, "    now:    size=%s, value=%s, roi=%s\n",
			rec.Current.Size, rec.Current.Value.StringFixed(1), formatROI(rec.Current.ROI))
	}
	fmt.Fprintf(b, "    change: size delta=%s, value delta=%s\n",
		rec.DeltaSize, rec.DeltaValue.StringFixed(1))

	if rec.RatioWithinCoin != nil {
		fmt.Fprintf(b, "    share of coin position: %s%%\n",
			rec.RatioWithinCoin.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
	if rec.RatioOfPortfolio != nil {
		fmt.Fprintf(b, "    share of portfolio: %s%%\n",
			rec.RatioOfPortfolio.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}

	pc := d.prices.FetchContext(ctx, rec.Coin)
	if pc.Current != nil {
		fmt.Fprintf(b, "    market price: %s\n", pc.Current)
	} else {
		b.WriteString("    market price: N/A\n")
	}

	indicators := make([]string, 0, len(pricer.Windows))
	for _, window := range pricer.Windows {
		delta := pricer.WindowDelta(pc.Current, pc.Closes[window])
		indicators = append(indicators, fmt.Sprintf("%s %s", window, pricer.FormatChangeIndicator(delta)))
	}
	fmt.Fprintf(b, "    price change: %s\n", strings.Join(indicators, " | "))
}

func formatROI(roi *decimal.Decimal) string {
	if roi == nil {
		return "unavailable"
	}
	return roi.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

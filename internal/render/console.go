// Package render draws the per-iteration account snapshot to the
// terminal. Pure presentation: it consumes already-computed domain
// values and never talks to the network.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"walletwatch/internal/domain"
	"walletwatch/internal/services/pricer"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	coinStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	// gains red, losses green (CN market convention)
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const labelWidth = 16

// View is everything one iteration wants on screen.
type View struct {
	Iteration   uint64
	Now         time.Time
	LastSuccess time.Time

	AccountValue    *decimal.Decimal
	TotalNtlPos     *decimal.Decimal
	TotalRawUsd     *decimal.Decimal
	TotalMarginUsed *decimal.Decimal

	Positions domain.Snapshot
	Contexts  map[string]domain.PriceContext
	Changes   domain.ChangeSet
	History   []domain.AuditRecord
}

// Console renders snapshot views to a writer.
type Console struct {
	out    io.Writer
	target string
}

// NewConsole creates a renderer for the given target account.
func NewConsole(out io.Writer, target string) *Console {
	return &Console{out: out, target: target}
}

// Render clears the screen and draws the full view.
func (c *Console) Render(v View) {
	fmt.Fprint(c.out, "\033[H\033[2J")

	lastSuccess := "N/A"
	if !v.LastSuccess.IsZero() {
		lastSuccess = v.LastSuccess.Format("2006-01-02 15:04:05")
	}
	fmt.Fprintln(c.out, headerStyle.Render(fmt.Sprintf(
		"iteration: %d    time: %s    last update: %s    target: %s",
		v.Iteration, v.Now.Format("2006-01-02 15:04:05"), lastSuccess, c.target)))

	fmt.Fprintln(c.out, titleStyle.Render("account summary:"))
	c.kv(4, "account value", formatAmount(v.AccountValue))
	c.kv(4, "total ntl pos", formatAmount(v.TotalNtlPos))
	c.kv(4, "total raw usd", formatAmount(v.TotalRawUsd))
	c.kv(4, "margin used", formatAmount(v.TotalMarginUsed))

	if len(v.Positions) == 0 {
		fmt.Fprintln(c.out, titleStyle.Render("no open positions"))
	} else {
		fmt.Fprintln(c.out, titleStyle.Render("open positions:"))
		for _, coin := range v.Positions.Coins() {
			c.position(coin, v.Positions[coin], v.Contexts[coin])
		}
	}

	c.changes(v.Changes)
	c.history(v.History)
}

func (c *Console) position(coin string, pos domain.PositionSummary, pc domain.PriceContext) {
	fmt.Fprintln(c.out, "  "+coinStyle.Render(coin))
	c.kv(8, "size", pos.Size.String())
	if pos.Entry != nil {
		c.kv(8, "entry price", pos.Entry.String())
	} else {
		c.kv(8, "entry price", "N/A")
	}

	c.kv(8, "current roi", formatLeveredROI(pos))
	c.kv(8, "position value", pos.Value.StringFixed(1))
	c.kv(8, "unrealized pnl", colorizeSigned(pos.Unrealized))

	if pc.Current != nil {
		c.kv(8, "market price", pc.Current.String())
	} else {
		c.kv(8, "market price", "N/A")
	}

	indicators := make([]string, 0, len(pricer.Windows))
	for _, window := range pricer.Windows {
		delta := pricer.WindowDelta(pc.Current, pc.Closes[window])
		indicators = append(indicators, pricer.FormatChangeIndicator(delta))
	}
	c.kv(8, "price change", strings.Join(indicators, " | "))
}

func (c *Console) changes(set domain.ChangeSet) {
	if set.Empty() {
		fmt.Fprintln(c.out, lossStyle.Render("no position changes detected"))
		return
	}

	fmt.Fprintln(c.out, alertStyle.Render("position changes detected:"))
	c.changeSection("added", set.Added)
	c.changeSection("removed", set.Removed)
	c.changeSection("modified", set.Modified)
}

func (c *Console) changeSection(name string, records []domain.ChangeRecord) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(c.out, "  %s\n", labelStyle.Render(name+":"))
	for _, rec := range records {
		fmt.Fprintf(c.out, "    %s: size delta=%s, value delta=%s\n",
			coinStyle.Render(rec.Coin), rec.DeltaSize, rec.DeltaValue.StringFixed(1))
	}
}

func (c *Console) history(records []domain.AuditRecord) {
	if len(records) == 0 {
		return
	}

	fmt.Fprintln(c.out, titleStyle.Render("recent change history:"))
	for i, rec := range records {
		ts := "N/A"
		if !rec.Timestamp.IsZero() {
			ts = rec.Timestamp.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(c.out, "    %s %s\n",
			labelStyle.Render(fmt.Sprintf("#%d", i+1)),
			dimStyle.Render(fmt.Sprintf("%s (iteration %d) %s", ts, rec.Iteration, rec.Subject)))
	}
}

func (c *Console) kv(indent int, label, value string) {
	padded := label
	if len(padded) < labelWidth {
		padded += strings.Repeat(" ", labelWidth-len(padded))
	}
	fmt.Fprintf(c.out, "%s%s %s\n",
		strings.Repeat(" ", indent), labelStyle.Render(padded+":"), value)
}

func formatAmount(v *decimal.Decimal) string {
	if v == nil {
		return "N/A"
	}
	return valueStyle.Render(v.StringFixed(1))
}

// formatLeveredROI renders "roi * leverage = effective" with the
// effective part colorized by sign.
func formatLeveredROI(pos domain.PositionSummary) string {
	roiStr, levStr, effStr := "N/A", "N/A", "N/A"
	if pos.ROI != nil {
		roiStr = pos.ROI.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
	}
	if pos.Leverage != nil {
		levStr = pos.Leverage.String() + "x"
	}
	if eff := pos.LeveragedROI(); eff != nil {
		rendered := eff.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
		if eff.IsPositive() {
			effStr = gainStyle.Render(rendered)
		} else {
			effStr = lossStyle.Render(rendered)
		}
	}
	return fmt.Sprintf("%s * %s = %s", roiStr, levStr, effStr)
}

func colorizeSigned(v decimal.Decimal) string {
	rendered := v.String()
	if v.IsPositive() {
		return gainStyle.Render(rendered)
	}
	return lossStyle.Render(rendered)
}

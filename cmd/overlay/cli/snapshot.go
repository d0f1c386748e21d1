// Package cli holds the output side of the overlay commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	activeStyle = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("#C89A3A"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// SnapshotOptions defines the flags of the snapshot command.
type SnapshotOptions struct {
	Fetcher    records.Fetcher
	Formatter  *kpi.MoneyFormatter
	Text       i18n.UiText
	Filter     kpi.Filter
	Now        time.Time
	Location   *time.Location
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SnapshotSummary is the JSON form of one snapshot.
type SnapshotSummary struct {
	Filter kpi.Filter   `json:"filter"`
	Rows   int          `json:"rows"`
	Card   kpi.Card     `json:"card"`
	Raw    kpi.Snapshot `json:"raw"`
	Counts kpi.Counts   `json:"counts"`
	AsOf   string       `json:"as_of"`
}

// SnapshotCommand fetches the rows once, aggregates them for the filter and
// prints the card. It returns the process exit code.
func SnapshotCommand(ctx context.Context, opts SnapshotOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Fetcher == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "snapshot: no record fetcher configured")
		return 1
	}
	if opts.Formatter == nil {
		opts.Formatter = kpi.NewMoneyFormatter("", "")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location != nil {
		opts.Now = opts.Now.In(opts.Location)
	}
	active := kpi.ParseFilter(string(opts.Filter))

	rows, err := opts.Fetcher.FetchRecords(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "snapshot: fetch records: %v\n", err)
		return 1
	}
	today := kpi.Today(opts.Now)
	raw, counts := kpi.Aggregate(rows, active, today)
	summary := SnapshotSummary{
		Filter: active,
		Rows:   len(rows),
		Card:   opts.Formatter.Card(raw),
		Raw:    raw,
		Counts: counts,
		AsOf:   today.String(),
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "snapshot: encode: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(opts.Stdout, RenderCard(summary, opts.Text))
	return 0
}

// RenderCard lays the summary out as a bordered terminal card.
func RenderCard(s SnapshotSummary, text i18n.UiText) string {
	line := func(label, value, suffix string) string {
		return labelStyle.Render(label) + "  " + valueStyle.Render(value) + " " + labelStyle.Render(suffix)
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(text.HeaderTitle))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(s.AsOf))
	b.WriteString("\n\n")
	b.WriteString(line(text.KpiOverdueAmount, s.Card.OverdueAmount, fmt.Sprintf("%d %s", s.Card.OverdueCount, text.KpiRecordsSuffix)))
	b.WriteString("\n")
	b.WriteString(line(text.KpiDraftedTotals, s.Card.DraftAmount, fmt.Sprintf("%d %s", s.Card.DraftCount, text.KpiRecordsSuffix)))
	b.WriteString("\n")
	b.WriteString(line(text.KpiUnpaidTotals, s.Card.UnpaidAmount, fmt.Sprintf("%d %s", s.Card.UnpaidCount, text.KpiRecordsSuffix)))
	b.WriteString("\n")
	b.WriteString(line(text.KpiAveragePaidTime, fmt.Sprintf("%d", s.Card.AvgPaidDays), fmt.Sprintf("%s · %d %s", text.KpiDaysSuffix, s.Card.PostedCount, text.KpiPostedRecordsSuffix)))
	b.WriteString("\n\n")

	chips := make([]string, 0, len(kpi.Order))
	for _, f := range kpi.Order {
		chip := fmt.Sprintf("%s %d", text.FilterLabel(string(f)), s.Counts.Get(f))
		if f == s.Filter {
			chip = activeStyle.Render(chip)
		} else {
			chip = labelStyle.Render(chip)
		}
		chips = append(chips, chip)
	}
	b.WriteString(strings.Join(chips, "  "))
	return boxStyle.Render(b.String())
}

package kpi

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

var today = records.NewDate(2025, time.June, 15)

func scenarioRows() []records.Row {
	return []records.Row{
		{
			State:          records.StatePosted,
			AmountTotal:    decimal.NewFromInt(100),
			AmountResidual: decimal.NewFromInt(100),
			DueDate:        records.NewDate(2025, time.June, 14),
			PaymentState:   "not_paid",
		},
		{
			State:          records.StateDraft,
			AmountTotal:    decimal.NewFromInt(50),
			AmountResidual: decimal.NewFromInt(50),
			PaymentState:   "not_paid",
		},
		{
			State:          records.StatePosted,
			AmountTotal:    decimal.NewFromInt(80),
			AmountResidual: decimal.Zero,
			DueDate:        records.NewDate(2025, time.June, 16),
			PaymentState:   "paid",
		},
	}
}

func TestClassifyScenario(t *testing.T) {
	rows := scenarioRows()
	b := Classify(rows, today)

	assert.Equal(t, rows, b.All)
	assert.Equal(t, []records.Row{rows[0]}, b.Overdue)
	assert.Equal(t, []records.Row{rows[1]}, b.Draft)
	assert.Equal(t, []records.Row{rows[2]}, b.Paid)
	assert.Equal(t, []records.Row{rows[0]}, b.Pending)
}

func TestAggregateScenario(t *testing.T) {
	snap, counts := Aggregate(scenarioRows(), FilterAll, today)

	assert.True(t, snap.OverdueAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, snap.OverdueCount)
	assert.True(t, snap.DraftAmount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, snap.DraftCount)
	assert.True(t, snap.UnpaidAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, snap.UnpaidCount)
	assert.Equal(t, 2, snap.PostedCount)
	// one day late and one not yet due: mean of 1 and 0 rounds up
	assert.Equal(t, 1, snap.AvgPaidDays)

	assert.Equal(t, Counts{All: 3, Paid: 1, Overdue: 1, Pending: 1, Draft: 1}, counts)
}

func TestAggregateCountsIgnoreActiveFilter(t *testing.T) {
	rows := scenarioRows()
	_, all := Aggregate(rows, FilterAll, today)
	for _, f := range Order {
		snap, counts := Aggregate(rows, f, today)
		assert.Equal(t, all, counts, "filter %s", f)
		assert.Equal(t, len(rows), counts.All)
		if f == FilterDraft {
			assert.Zero(t, snap.PostedCount)
			assert.Equal(t, 1, snap.DraftCount)
		}
	}
}

func TestAggregateUnknownFilterUsesAll(t *testing.T) {
	rows := scenarioRows()
	want, _ := Aggregate(rows, FilterAll, today)
	got, _ := Aggregate(rows, Filter("bogus"), today)
	assert.Equal(t, want.PostedCount, got.PostedCount)
	assert.True(t, want.UnpaidAmount.Equal(got.UnpaidAmount))
}

func TestAggregateAvgDaysWithoutDueDates(t *testing.T) {
	rows := []records.Row{
		{State: records.StatePosted, AmountResidual: decimal.NewFromInt(10), PaymentState: "not_paid"},
		{State: records.StateDraft, AmountTotal: decimal.NewFromInt(3)},
	}
	snap, _ := Aggregate(rows, FilterAll, today)
	assert.Zero(t, snap.AvgPaidDays)
	assert.Zero(t, snap.OverdueCount)
	assert.True(t, snap.UnpaidAmount.Equal(decimal.NewFromInt(10)))
}

func TestAggregateNegativeResidualDoesNotReduceUnpaid(t *testing.T) {
	rows := []records.Row{
		{State: records.StatePosted, AmountResidual: decimal.NewFromInt(-20), PaymentState: "reversed"},
		{State: records.StatePosted, AmountResidual: decimal.NewFromInt(30), PaymentState: "partial"},
	}
	snap, _ := Aggregate(rows, FilterAll, today)
	assert.True(t, snap.UnpaidAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 2, snap.UnpaidCount)
}

func randomRows(r *rand.Rand, n int) []records.Row {
	states := []records.MoveState{records.StateDraft, records.StatePosted}
	payments := []string{"paid", "not_paid", "partial", "in_payment", ""}
	rows := make([]records.Row, 0, n)
	for i := 0; i < n; i++ {
		row := records.Row{
			State:          states[r.Intn(len(states))],
			AmountTotal:    decimal.NewFromInt(int64(r.Intn(1000))),
			AmountResidual: decimal.NewFromInt(int64(r.Intn(400) - 100)),
			PaymentState:   payments[r.Intn(len(payments))],
		}
		if r.Intn(4) > 0 {
			row.DueDate = records.DateOf(today.Time.AddDate(0, 0, r.Intn(60)-30))
		}
		rows = append(rows, row)
	}
	return rows
}

func TestClassifyProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		rows := randomRows(r, r.Intn(40))
		b := Classify(rows, today)

		require.Equal(t, rows, b.All)
		require.LessOrEqual(t, len(b.Paid)+len(b.Draft), len(rows))

		for _, row := range b.Overdue {
			require.True(t, row.IsPosted())
			require.True(t, row.AmountResidual.IsPositive())
			require.True(t, row.DueDate.Before(today))
		}
		for _, bucket := range [][]records.Row{b.Overdue, b.Paid, b.Pending} {
			for _, row := range bucket {
				require.False(t, row.IsDraft())
			}
		}

		for _, f := range []Filter{FilterAll, FilterOverdue} {
			snap, _ := Aggregate(rows, f, today)
			sum := decimal.Zero
			for _, row := range b.Overdue {
				sum = sum.Add(row.AmountResidual)
			}
			require.True(t, sum.Equal(snap.OverdueAmount), "filter %s", f)
			require.Equal(t, len(b.Overdue), snap.OverdueCount)
			require.GreaterOrEqual(t, snap.AvgPaidDays, 0)
		}
	}
}

func TestInferFilter(t *testing.T) {
	cases := map[string]Filter{
		"Pagado":     FilterPaid,
		"  PAGADO  ": FilterPaid,
		"Paid":       FilterPaid,
		"":           FilterAll,
		"   ":        FilterAll,
		"Vencido":    FilterOverdue,
		"Overdue":    FilterOverdue,
		"Borrador":   FilterDraft,
		"Draft":      FilterDraft,
		"Not Paid":   FilterPending,
		"No pagado":  FilterPending,
		"Abierto":    FilterPending,
		"Pendiente":  FilterPending,
		"En proceso": FilterAll,
		"Publicado":  FilterAll,
		"PAGADA":     FilterPaid,
		"PÁgado":     FilterPaid,
	}
	for text, want := range cases {
		assert.Equal(t, want, InferFilter(text), "text %q", text)
	}
}

func TestNormalizeTextStripsDiacritics(t *testing.T) {
	assert.Equal(t, "facturacion vencida", NormalizeText("  Facturación VENCIDA "))
}

func TestParseFilterAndStep(t *testing.T) {
	assert.Equal(t, FilterOverdue, ParseFilter("overdue"))
	assert.Equal(t, FilterAll, ParseFilter("nope"))
	assert.Equal(t, FilterPaid, Step(FilterAll, 1))
	assert.Equal(t, FilterAll, Step(FilterAll, -1))
	assert.Equal(t, FilterDraft, Step(FilterDraft, 1))
	assert.Equal(t, FilterPending, Step(FilterDraft, -1))
}

func TestMoneyFormatter(t *testing.T) {
	f := NewMoneyFormatter("en-US", "USD")
	out := f.Format(decimal.RequireFromString("1234.5"))
	assert.Contains(t, out, "1,234.50")
	assert.NotEqual(t, "1,234.50", out)

	neg := f.Format(decimal.RequireFromString("-3"))
	assert.True(t, len(neg) > 0 && neg[0] == '-')

	fallback := NewMoneyFormatter("not a locale", "???")
	assert.NotEmpty(t, fallback.Format(decimal.Zero))
}

package kpi

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

// Snapshot holds the dashboard figures for one filter selection. It is
// rebuilt from scratch on every refresh.
type Snapshot struct {
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	OverdueCount  int             `json:"overdue_count"`
	DraftAmount   decimal.Decimal `json:"draft_amount"`
	DraftCount    int             `json:"draft_count"`
	UnpaidAmount  decimal.Decimal `json:"unpaid_amount"`
	UnpaidCount   int             `json:"unpaid_count"`
	AvgPaidDays   int             `json:"avg_paid_days"`
	PostedCount   int             `json:"posted_count"`
}

// Counts holds the size of every bucket, independent of the active filter.
type Counts struct {
	All     int `json:"all"`
	Paid    int `json:"paid"`
	Overdue int `json:"overdue"`
	Pending int `json:"pending"`
	Draft   int `json:"draft"`
}

// Get returns the count for f.
func (c Counts) Get(f Filter) int {
	switch f {
	case FilterPaid:
		return c.Paid
	case FilterOverdue:
		return c.Overdue
	case FilterPending:
		return c.Pending
	case FilterDraft:
		return c.Draft
	default:
		return c.All
	}
}

// CountBuckets sizes every bucket.
func CountBuckets(b Buckets) Counts {
	return Counts{
		All:     len(b.All),
		Paid:    len(b.Paid),
		Overdue: len(b.Overdue),
		Pending: len(b.Pending),
		Draft:   len(b.Draft),
	}
}

// Aggregate classifies rows and computes the snapshot for the active filter
// together with the unfiltered bucket counts.
func Aggregate(rows []records.Row, active Filter, today records.Date) (Snapshot, Counts) {
	buckets := Classify(rows, today)
	return Summarize(buckets.Select(active), today), CountBuckets(buckets)
}

// Summarize derives the snapshot from an already selected bucket.
func Summarize(selected []records.Row, today records.Date) Snapshot {
	snap := Snapshot{
		OverdueAmount: decimal.Zero,
		DraftAmount:   decimal.Zero,
		UnpaidAmount:  decimal.Zero,
	}
	var agingDays, agingSamples int
	for _, r := range selected {
		if r.IsDraft() {
			snap.DraftAmount = snap.DraftAmount.Add(r.AmountTotal)
			snap.DraftCount++
		}
		if !r.IsPosted() {
			continue
		}
		snap.PostedCount++
		if r.AmountResidual.IsPositive() {
			snap.UnpaidAmount = snap.UnpaidAmount.Add(r.AmountResidual)
		}
		if !r.IsPaid() {
			snap.UnpaidCount++
		}
		if IsOverdue(r, today) {
			snap.OverdueAmount = snap.OverdueAmount.Add(r.AmountResidual)
			snap.OverdueCount++
		}
		if r.DueDate.Valid {
			if days := r.DueDate.DaysUntil(today); days > 0 {
				agingDays += days
			}
			agingSamples++
		}
	}
	snap.AvgPaidDays = roundedMean(agingDays, agingSamples)
	return snap
}

func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}

package kpi

import (
	"time"

	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

// Buckets partitions a row sequence by status. Buckets overlap: a posted,
// unpaid, past-due row is both overdue and pending.
type Buckets struct {
	All     []records.Row
	Paid    []records.Row
	Overdue []records.Row
	Pending []records.Row
	Draft   []records.Row
}

// Select returns the bucket for f, or All when f is unknown.
func (b Buckets) Select(f Filter) []records.Row {
	switch f {
	case FilterPaid:
		return b.Paid
	case FilterOverdue:
		return b.Overdue
	case FilterPending:
		return b.Pending
	case FilterDraft:
		return b.Draft
	default:
		return b.All
	}
}

// Today truncates now to the calendar day in its own location.
func Today(now time.Time) records.Date {
	return records.DateOf(now)
}

// IsOverdue reports whether a posted row still owes money past its due day.
func IsOverdue(r records.Row, today records.Date) bool {
	return r.IsPosted() && r.AmountResidual.IsPositive() && r.DueDate.Valid && r.DueDate.Before(today)
}

// Classify evaluates every bucket rule independently per row.
func Classify(rows []records.Row, today records.Date) Buckets {
	b := Buckets{All: rows}
	for _, r := range rows {
		if r.IsPaid() && r.IsPosted() {
			b.Paid = append(b.Paid, r)
		}
		if IsOverdue(r, today) {
			b.Overdue = append(b.Overdue, r)
		}
		if r.IsPosted() && !r.IsPaid() {
			b.Pending = append(b.Pending, r)
		}
		if r.IsDraft() {
			b.Draft = append(b.Draft, r)
		}
	}
	return b
}
